package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	"insight-harvest/internal/domain"
)

// normalizeErr folds provider-specific failures into the three inference
// error kinds the lifecycle manager records. Order matters: a timed-out dial
// is a timeout, not a connection error.
func normalizeErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, domain.ErrInferenceTimeout)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s: %w", provider, domain.ErrInferenceTimeout)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrInferenceConnection)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %v: %w", provider, ue.Err, domain.ErrInferenceConnection)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrInferenceConnection)
	}
	return fmt.Errorf("%s: %v: %w", provider, err, domain.ErrInferenceBackend)
}

// backendErr marks an application-level provider failure (bad status,
// empty choice list) as ErrInferenceBackend.
func backendErr(provider, detail string) error {
	return fmt.Errorf("%s: %s: %w", provider, detail, domain.ErrInferenceBackend)
}
