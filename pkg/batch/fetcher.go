// Package batch provides parallel fetching of many upstream resources
// through the access facade. The facade's admission queue still paces every
// call; the worker pool only bounds how many fetches are in flight at once.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches.
	MaxConcurrency int

	// Timeout per fetch, including queueing and retries.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        60 * time.Second,
	}
}

// Fetcher is the facade surface the batch runner needs.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string, ttl time.Duration) ([]byte, error)
}

// Request describes one resource to fetch.
type Request struct {
	Endpoint string
	Params   map[string]string
	TTL      time.Duration
}

// Result is the outcome of one request. Exactly one of Body or Err is set.
type Result struct {
	Request Request
	Body    []byte
	Err     error
}

// Runner fetches batches of resources with bounded concurrency.
type Runner struct {
	fetcher Fetcher
	config  Config
}

// NewRunner creates a batch runner.
func NewRunner(fetcher Fetcher, config Config) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Runner{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches every request and returns one Result per request, in
// request order. Individual failures do not abort the batch; callers
// inspect each Result's Err. Context cancellation stops unstarted work and
// leaves those results with ctx.Err().
func (r *Runner) FetchAll(ctx context.Context, requests []Request) []Result {
	start := time.Now()
	results := make([]Result, len(requests))

	log.Info().
		Int("requests", len(requests)).
		Int("max_concurrency", r.config.MaxConcurrency).
		Msg("Starting batch fetch")

	queue := make(chan int)
	go func() {
		defer close(queue)
		for i := range requests {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	workers := r.config.MaxConcurrency
	if workers > len(requests) {
		workers = len(requests)
	}
	var done int64
	var mu sync.Mutex

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				req := requests[i]

				fetchCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
				body, err := r.fetcher.Fetch(fetchCtx, req.Endpoint, req.Params, req.TTL)
				cancel()

				results[i] = Result{Request: req, Body: body, Err: err}

				if err != nil {
					log.Warn().
						Err(err).
						Str("endpoint", req.Endpoint).
						Msg("Batch item failed")
				}

				mu.Lock()
				done++
				if done%50 == 0 {
					log.Info().
						Int64("fetched", done).
						Int("total", len(requests)).
						Msg("Batch progress")
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Requests never handed to a worker carry the cancellation cause.
	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Body == nil && results[i].Err == nil {
				results[i] = Result{Request: requests[i], Err: err}
			}
		}
	}

	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}

	log.Info().
		Int("requests", len(requests)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}
