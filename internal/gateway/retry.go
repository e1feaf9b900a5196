package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"rdscope/internal/domain"
	"rdscope/internal/logging"
)

// Bounded attempt count and backoff cap guarantee every call settles well
// inside the run timeout.
const (
	maxAttempts     = 5
	baseRetryDelay  = 200 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
)

// withRetry runs one provider call with exponential backoff. Only
// RateLimited and Transient failures are retried; NotFound, AccessDenied,
// and Malformed are permanent. fn must return normalized errors.
func withRetry[T any](ctx context.Context, apiName string, fn func(context.Context) (T, error)) (T, error) {
	metrics := logging.GetMetrics()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseRetryDelay
	b.MaxInterval = maxRetryDelay

	attempt := 0
	start := time.Now()

	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordRetry(apiName)
			logging.LogDebug("Retrying API call", map[string]interface{}{
				"api_name": apiName,
				"attempt":  attempt,
			})
		}

		out, err := fn(ctx)
		if err != nil {
			if !domain.KindOf(err).Retryable() {
				return out, backoff.Permanent(err)
			}
			return out, err
		}
		return out, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxAttempts))

	logging.LogAPICall(apiName, err == nil, time.Since(start), err)
	metrics.RecordAPICall(apiName, err == nil, err)

	return result, err
}
