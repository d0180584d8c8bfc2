// Package client provides the resilient access layer for the Nexon Open
// API: a TTL cache, an admission queue that keeps outbound calls under the
// provider's rate contract, retry with per-kind backoff, and a typed error
// taxonomy.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/nxkit/nexon-openapi-client/pkg/cache"
	"github.com/nxkit/nexon-openapi-client/pkg/ratelimit"
)

// Prometheus metrics for facade operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openapi_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openapi_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openapi_errors_total",
		Help: "Total classified errors by kind",
	}, []string{"kind"})
)

// Middleware hooks into the fetch pipeline around each transport attempt.
// Hooks are invoked in registration order and must not mutate params.
type Middleware struct {
	BeforeCall   func(ctx context.Context, endpoint string, params map[string]string)
	AfterSuccess func(ctx context.Context, endpoint string, params map[string]string, body []byte)
	AfterFailure func(ctx context.Context, endpoint string, params map[string]string, err *APIError)
}

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates against the upstream. Required unless a custom
	// Transport is supplied.
	APIKey string

	// BaseURL overrides the upstream base URL (default: DefaultBaseURL).
	BaseURL string

	// Transport overrides the default HTTP transport (for testing or
	// alternative backends).
	Transport Transport

	// Rate limiting
	RequestsPerSecond      int
	RequestsPerMinute      int
	BurstLimit             int
	HeavyRequestsPerSecond int

	// QueueTimeout bounds how long a call may wait for admission.
	// Zero waits indefinitely.
	QueueTimeout time.Duration

	// Retry
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	BackoffFactor  float64
	JitterFactor   float64

	// CacheMaxEntries is the cache's soft capacity.
	CacheMaxEntries int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:                 apiKey,
		RequestsPerSecond:      8,
		RequestsPerMinute:      480,
		BurstLimit:             12,
		HeavyRequestsPerSecond: 5,
		MaxRetries:             3,
		BaseRetryDelay:         1 * time.Second,
		MaxRetryDelay:          30 * time.Second,
		BackoffFactor:          2.0,
		JitterFactor:           0.1,
		CacheMaxEntries:        cache.DefaultMaxEntries,
	}
}

// Client is the access facade callers use. It composes cache lookup,
// admission, the transport call, retry, and cache write-back behind a
// single Fetch entry point.
type Client struct {
	transport  Transport
	limiter    *ratelimit.Limiter
	store      *cache.Store[[]byte]
	retry      RetryPolicy
	middleware []Middleware
	group      singleflight.Group
	logger     zerolog.Logger

	// injectable seams for deterministic tests
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	jitterRand func() float64
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	transport := cfg.Transport
	if transport == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("api key is required")
		}
		transport = NewHTTPTransport(cfg.BaseURL, cfg.APIKey)
	}

	if cfg.BackoffFactor != 0 && cfg.BackoffFactor < 1 {
		return nil, fmt.Errorf("backoff_factor must be >= 1 (got %g)", cfg.BackoffFactor)
	}
	if cfg.JitterFactor < 0 || cfg.JitterFactor > 1 {
		return nil, fmt.Errorf("jitter_factor must be in [0, 1] (got %g)", cfg.JitterFactor)
	}

	defaults := DefaultConfig(cfg.APIKey)
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.HeavyRequestsPerSecond <= 0 {
		cfg.HeavyRequestsPerSecond = defaults.HeavyRequestsPerSecond
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = defaults.BackoffFactor
	}
	if cfg.BaseRetryDelay <= 0 {
		cfg.BaseRetryDelay = defaults.BaseRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaults.MaxRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	logger := log.With().Str("component", "openapi-client").Logger()

	limiter := ratelimit.NewLimiter(
		ratelimit.Policy{
			RequestsPerSecond: cfg.RequestsPerSecond,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Burst:             cfg.BurstLimit,
			QueueTimeout:      cfg.QueueTimeout,
		},
		ratelimit.Policy{
			RequestsPerSecond: cfg.HeavyRequestsPerSecond,
			QueueTimeout:      cfg.QueueTimeout,
		},
		logger,
	)

	return &Client{
		transport: transport,
		limiter:   limiter,
		store:     cache.NewStore[[]byte](cfg.CacheMaxEntries),
		retry: RetryPolicy{
			MaxRetries:    cfg.MaxRetries,
			BaseDelay:     cfg.BaseRetryDelay,
			MaxDelay:      cfg.MaxRetryDelay,
			BackoffFactor: cfg.BackoffFactor,
			JitterFactor:  cfg.JitterFactor,
		},
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
		jitterRand: rand.Float64,
	}, nil
}

// Use appends a middleware to the fetch pipeline.
func (c *Client) Use(mw Middleware) {
	c.middleware = append(c.middleware, mw)
}

// Fetch returns the response body for an endpoint, serving from cache when
// a fresh entry exists and writing the result back with the given TTL on
// success. Concurrent callers of the same normalized request share one
// upstream call. A ttl of zero disables caching for this call.
//
// Terminal failures are returned as *APIError.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string, ttl time.Duration) ([]byte, error) {
	key := cache.Key{Endpoint: endpoint, Params: params}

	if body, ok := c.store.Get(key); ok {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Msg("Cache hit")
		return cloneBytes(body), nil
	}

	// Collapse concurrent misses for the same key into one flight.
	body, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// A concurrent flight may have populated the cache while this
		// caller was waiting for the flight lock.
		if cached, ok := c.store.Get(key); ok {
			return cached, nil
		}

		result, err := c.execute(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		if ttl > 0 {
			c.store.Set(key, result, ttl)
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", ttl).
				Msg("Cached response")
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneBytes(body.([]byte)), nil
}

// FetchJSON fetches an endpoint and decodes the response body into T.
func FetchJSON[T any](ctx context.Context, c *Client, endpoint string, params map[string]string, ttl time.Duration) (T, error) {
	var out T

	body, err := c.Fetch(ctx, endpoint, params, ttl)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return out, nil
}

// Invalidate removes cached entries. The argument is either a full cache
// key or a prefix (see cache.Prefix); it returns the number of entries
// removed.
func (c *Client) Invalidate(keyOrPrefix string) int {
	removed := c.store.DeletePrefix(keyOrPrefix)
	c.logger.Debug().
		Str("prefix", keyOrPrefix).
		Int("removed", removed).
		Msg("Cache invalidated")
	return removed
}

// InvalidateEndpoint removes every cached entry for an endpoint.
func (c *Client) InvalidateEndpoint(endpoint string) int {
	return c.Invalidate(cache.Prefix(endpoint))
}

// CacheLen returns the number of cached entries.
func (c *Client) CacheLen() int {
	return c.store.Len()
}

// Limiter exposes the admission limiter (for composition and testing).
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// sleepContext waits for d or until ctx ends, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cloneBytes copies a cached body so callers never share the stored slice.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
