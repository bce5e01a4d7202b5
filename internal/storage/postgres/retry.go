package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	apperrors "geojobs/internal/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.InitialInterval
	exp.MaxInterval = c.MaxInterval
	exp.MaxElapsedTime = 0

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// withRetry runs fn until it succeeds, fails permanently or the attempts
// run out. Only connection-level and serialization failures are retried.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	return s.retryWhile(ctx, op, isTransient, fn)
}

// withWriteRetry is withRetry for statements that must not run twice. A
// lost connection after the statement was sent may hide a commit, so only
// failures known to leave the table untouched are retried.
func (s *Store) withWriteRetry(ctx context.Context, op string, fn func() error) error {
	return s.retryWhile(ctx, op, failedBeforeApply, fn)
}

func (s *Store) retryWhile(ctx context.Context, op string, retryable func(error) bool, fn func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		s.logger.Warn("transient database error",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}, s.retry.backOff(ctx))
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01", "57P01":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// failedBeforeApply reports errors after which the statement certainly had
// no effect: database/sql returns ErrBadConn only before sending it, and a
// serialization failure or deadlock rolls the statement back.
func failedBeforeApply(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

// classify turns driver errors into domain errors.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.DuplicateKey(message, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isTransient(err) {
		return apperrors.Unavailable(message, err)
	}
	return apperrors.Internal(message, err)
}

func rawIDMessage(rawID int64) string {
	return fmt.Sprintf("parsed job %d", rawID)
}
