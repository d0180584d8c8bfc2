package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nxkit/nexon-openapi-client/pkg/ratelimit"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openapi_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)

// RetryPolicy holds the configuration for retry and backoff behavior.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the initial one.
	MaxRetries int

	// BaseDelay is the first-retry delay for generic retryable errors.
	// Per-kind multipliers scale it; see baseDelayFor.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay.
	MaxDelay time.Duration

	// BackoffFactor is the exponential growth factor per attempt.
	BackoffFactor float64

	// JitterFactor bounds the random fraction added to each delay.
	JitterFactor float64
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// baseDelayFor returns the first-attempt delay for an error kind. Failure
// classes have different natural recovery times: a tripped rate limit needs
// longer to clear than a flaky connection.
func (p RetryPolicy) baseDelayFor(kind Kind) time.Duration {
	switch kind {
	case KindRateLimited, KindQuotaExceeded:
		return 5 * p.BaseDelay
	case KindConnectionFailed, KindGatewayTimeout:
		return 2 * p.BaseDelay
	default:
		return p.BaseDelay
	}
}

// Delay computes the backoff delay before retry number attempt (1-based)
// for the given error kind:
//
//	baseDelayFor(kind) * BackoffFactor^(attempt-1) + jitter
//
// where jitter is a random fraction in [0, JitterFactor] of the computed
// delay. The total is capped at MaxDelay. jitterRand supplies the random
// value in [0, 1); it is a parameter so the function stays reproducible
// under test.
func (p RetryPolicy) Delay(kind Kind, attempt int, jitterRand func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(p.baseDelayFor(kind)) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	d += d * p.JitterFactor * jitterRand()
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// execute runs one logical fetch operation: admit, call, classify, and
// retry with backoff until success, a non-retryable error, or exhaustion.
// On exhaustion the last classified error is surfaced, annotated with the
// attempt count.
func (c *Client) execute(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	category := ratelimit.CategoryFor(endpoint)
	maxAttempts := c.retry.MaxRetries + 1

	var lastErr *APIError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Admit(ctx, category); err != nil {
			if errors.Is(err, ratelimit.ErrQueueTimeout) {
				queueErr := newError(KindServiceUnavailable, DetailGeneric, 0, errorContext(endpoint, params))
				queueErr.Err = err
				return nil, queueErr
			}
			return nil, fmt.Errorf("admission: %w", err)
		}

		for _, mw := range c.middleware {
			if mw.BeforeCall != nil {
				mw.BeforeCall(ctx, endpoint, params)
			}
		}

		start := c.now()
		resp, transportErr := c.transport.Perform(ctx, endpoint, params)
		requestDuration.WithLabelValues(endpoint).Observe(c.now().Sub(start).Seconds())

		if transportErr == nil && resp.StatusCode < 400 {
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			for _, mw := range c.middleware {
				if mw.AfterSuccess != nil {
					mw.AfterSuccess(ctx, endpoint, params, resp.Body)
				}
			}
			return resp.Body, nil
		}

		var status int
		var body []byte
		if transportErr == nil {
			status = resp.StatusCode
			body = resp.Body
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		} else {
			requestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		}

		apiErr := Classify(status, body, endpoint, params, transportErr)
		errorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()
		lastErr = apiErr

		for _, mw := range c.middleware {
			if mw.AfterFailure != nil {
				mw.AfterFailure(ctx, endpoint, params, apiErr)
			}
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", status).
			Str("kind", string(apiErr.Kind)).
			Int("attempt", attempt).
			Msg("Upstream request failed")

		if !apiErr.Retryable {
			apiErr.Context["attempts"] = strconv.Itoa(attempt)
			return nil, apiErr
		}

		if attempt >= maxAttempts {
			break
		}

		delay := c.retry.Delay(apiErr.Kind, attempt, c.jitterRand)
		retriesTotal.WithLabelValues(string(apiErr.Kind)).Inc()
		retryBackoffSeconds.WithLabelValues(string(apiErr.Kind)).Observe(delay.Seconds())

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("kind", string(apiErr.Kind)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("backoff interrupted: %w", err)
		}
	}

	// Retries exhausted: surface the last classified error, not a wrapper.
	retryExhaustedTotal.WithLabelValues(string(lastErr.Kind)).Inc()
	c.logger.Warn().
		Str("endpoint", endpoint).
		Str("kind", string(lastErr.Kind)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	lastErr.Context["attempts"] = strconv.Itoa(maxAttempts)
	return nil, lastErr
}
