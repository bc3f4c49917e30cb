// Package retry provides the bounded-retry and status-polling primitives used
// by every I/O-facing step. Retries are synchronous with no delay between
// attempts; polling is wall-clock bounded and never fails on timeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrInvalidAttempts is returned when a retry is requested with fewer than one attempt.
var ErrInvalidAttempts = errors.New("retry: attempts must be at least 1")

// Do runs op up to attempts times and returns nil on the first success.
// Every failure but the last is logged; the last error is returned unchanged.
func Do(ctx context.Context, logger logrus.FieldLogger, attempts int, op func(context.Context) error) error {
	_, err := DoValue(ctx, logger, attempts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is the value-returning form of Do.
func DoValue[T any](ctx context.Context, logger logrus.FieldLogger, attempts int, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		return zero, fmt.Errorf("%w: got %d", ErrInvalidAttempts, attempts)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if attempt >= attempts {
			return zero, err
		}
		logFailure(logger, attempt, attempts, err)
	}
}

func logFailure(logger logrus.FieldLogger, attempt, attempts int, err error) {
	fields := logrus.Fields{"attempt": attempt, "attempts": attempts}
	if Verbose(logger) {
		logger.WithFields(fields).Debugf("attempt failed, retrying: %+v", err)
		return
	}
	logger.WithFields(fields).Infof("attempt failed, retrying: %s", err.Error())
}

// Verbose reports whether logger emits debug entries.
func Verbose(logger logrus.FieldLogger) bool {
	switch l := logger.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	default:
		return false
	}
}

// Poll fetches a status value immediately and then every interval until
// stillWaiting reports false, returning that value. When timeout elapses the
// last fetched value is returned with a nil error. A fetch error aborts the
// poll and is returned as is.
func Poll[T any](ctx context.Context, fetch func(context.Context) (T, error), stillWaiting func(T) bool, interval, timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		value, err := fetch(ctx)
		if err != nil {
			return value, err
		}
		if !stillWaiting(value) || !time.Now().Before(deadline) {
			return value, nil
		}

		select {
		case <-ctx.Done():
			return value, ctx.Err()
		case <-ticker.C:
		}
	}
}
