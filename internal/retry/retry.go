package retry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"checkloader/internal/config"
	"checkloader/internal/permanent"
)

// Do runs fn until it succeeds, returns a permanent error, or the policy gives up.
// A disabled policy runs fn exactly once. Zero max attempts retries until ctx is done.
// Params: context, retry policy, optional logger, label for log lines, and operation.
// Returns: nil on success, permanent error as is, or last error wrapped with attempt count.
func Do(ctx context.Context, policy config.Retry, logger *slog.Logger, label string, fn func(context.Context) error) error {
	if !policy.Enabled {
		return fn(ctx)
	}

	attempt := 0
	backoff := time.Duration(policy.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(policy.MaxMS) * time.Millisecond
	timer := time.NewTimer(0)
	stopTimer(timer)
	defer stopTimer(timer)

	for {
		attempt++
		err := fn(ctx)
		if err == nil {
			if policy.LogEachAttempt && attempt > 1 && logger != nil {
				logger.Info("request recovered after retries", "op", label, "attempt", attempt)
			}
			return nil
		}
		if permanent.Is(err) {
			return err
		}
		if policy.LogEachAttempt && logger != nil {
			logger.Warn("request attempt failed", "op", label, "attempt", attempt, "error", err.Error())
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", label, attempt, err)
		}

		timer.Reset(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(policy.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// stopTimer stops timer and drains a pending tick.
func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
