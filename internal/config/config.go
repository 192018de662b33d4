// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty -> memory-only mode
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LimitsConfig struct {
	MaxSourceChars int `yaml:"max_source_chars"`
	MaxQueryChars  int `yaml:"max_query_chars"`
	MaxBatch       int `yaml:"max_batch"`
	DefaultList    int `yaml:"default_list"`
	MaxList        int `yaml:"max_list"`
}

type InferenceConfig struct {
	Provider        string        `yaml:"provider"` // ollama|openai|gemini|noop
	OllamaURL       string        `yaml:"ollama_url"`
	OpenAIKey       string        `yaml:"openai_key"`
	GeminiKey       string        `yaml:"gemini_key"`
	DefaultModel    string        `yaml:"default_model"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
	MinTimeout      time.Duration `yaml:"min_timeout"`
	MaxTimeout      time.Duration `yaml:"max_timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent inference calls
}

type WebhookConfig struct {
	Attempts    int           `yaml:"attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	Timeout     time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Retention time.Duration   `yaml:"retention_ttl"`
	Limits    LimitsConfig    `yaml:"limits"`
	Inference InferenceConfig `yaml:"inference"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Worker    WorkerConfig    `yaml:"worker"`
	// Processing tasks older than this at startup are failed by the
	// recovery pass.
	RecoveryGrace time.Duration `yaml:"recovery_grace"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the yaml file at path, applies defaults and environment
// overrides. A missing file is not an error: every key has a usable default
// and secrets come from the environment anyway.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional; ignore absence.
	_ = godotenv.Load()

	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.Inference.MinTimeout > cfg.Inference.MaxTimeout {
		return nil, fmt.Errorf("inference.min_timeout %s exceeds max_timeout %s",
			cfg.Inference.MinTimeout, cfg.Inference.MaxTimeout)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Inference.OllamaURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Inference.OpenAIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Inference.GeminiKey = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.Inference.Provider = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Limits.MaxSourceChars <= 0 {
		cfg.Limits.MaxSourceChars = 50000
	}
	if cfg.Limits.MaxQueryChars <= 0 {
		cfg.Limits.MaxQueryChars = 1000
	}
	if cfg.Limits.MaxBatch <= 0 {
		cfg.Limits.MaxBatch = 10
	}
	if cfg.Limits.DefaultList <= 0 {
		cfg.Limits.DefaultList = 20
	}
	if cfg.Limits.MaxList <= 0 {
		cfg.Limits.MaxList = 100
	}
	if cfg.Inference.Provider == "" {
		cfg.Inference.Provider = "ollama"
	}
	if cfg.Inference.OllamaURL == "" {
		cfg.Inference.OllamaURL = "http://localhost:11434"
	}
	if cfg.Inference.DefaultModel == "" {
		cfg.Inference.DefaultModel = "llama3.2:1b"
	}
	if cfg.Inference.DefaultTimeout <= 0 {
		cfg.Inference.DefaultTimeout = 60 * time.Second
	}
	if cfg.Inference.MinTimeout <= 0 {
		cfg.Inference.MinTimeout = 10 * time.Second
	}
	if cfg.Inference.MaxTimeout <= 0 {
		cfg.Inference.MaxTimeout = 300 * time.Second
	}
	if cfg.Inference.ConcurrentLimit <= 0 {
		cfg.Inference.ConcurrentLimit = 16
	}
	if cfg.Webhook.Attempts <= 0 {
		cfg.Webhook.Attempts = 3
	}
	if cfg.Webhook.BackoffBase <= 0 {
		cfg.Webhook.BackoffBase = time.Second
	}
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 8
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = 64
	}
	if cfg.RecoveryGrace <= 0 {
		cfg.RecoveryGrace = 10 * time.Minute
	}
}
