// Package webhook delivers terminal task snapshots to client-supplied
// callback URLs. Delivery is best-effort and fully decoupled from task
// state: exhausted retries are logged, never written back to the task.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"insight-harvest/internal/domain/model"
	"insight-harvest/internal/infra/metrics"
)

type Dispatcher struct {
	client      *http.Client
	attempts    int
	backoffBase time.Duration
	log         *zerolog.Logger
}

func NewDispatcher(attempts int, backoffBase, timeout time.Duration, logger *zerolog.Logger) *Dispatcher {
	if attempts <= 0 {
		attempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	compLog := logger.With().Str("component", "WebhookDispatcher").Logger()
	return &Dispatcher{
		client:      &http.Client{Timeout: timeout},
		attempts:    attempts,
		backoffBase: backoffBase,
		log:         &compLog,
	}
}

// Dispatch POSTs the task snapshot to its callback URL, retrying with
// doubling backoff. Callers run it in its own goroutine; it blocks only
// that goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, t *model.Task) {
	if t.CallbackURL == "" {
		return
	}
	body, err := json.Marshal(t)
	if err != nil {
		d.log.Error().Err(err).Str("task_id", t.ID).Msg("marshal callback payload")
		return
	}

	backoff := d.backoffBase
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := d.post(ctx, t.CallbackURL, body); err == nil {
			metrics.IncWebhookDelivery("delivered")
			d.log.Info().Str("task_id", t.ID).Int("attempt", attempt).Msg("callback delivered")
			return
		} else {
			d.log.Warn().Err(err).Str("task_id", t.ID).Int("attempt", attempt).Msg("callback delivery failed")
		}
		if attempt == d.attempts {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			metrics.IncWebhookDelivery("exhausted")
			return
		}
	}
	metrics.IncWebhookDelivery("exhausted")
	d.log.Error().Str("task_id", t.ID).Str("url", t.CallbackURL).Int("attempts", d.attempts).Msg("callback delivery gave up")
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return fmt.Sprintf("callback endpoint returned %d", e.code)
}
