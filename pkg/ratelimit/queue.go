package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for admission tracking.
var (
	admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openapi_admissions_total",
		Help: "Total number of tickets admitted by category",
	}, []string{"category"})

	admissionWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openapi_admission_wait_seconds",
		Help:    "Time tickets spent waiting for admission by category",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"category"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "openapi_queue_depth",
		Help: "Current number of tickets waiting for admission by category",
	}, []string{"category"})

	queueTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openapi_queue_timeouts_total",
		Help: "Total number of callers that timed out waiting for admission",
	}, []string{"category"})
)

// ErrQueueTimeout is returned when a caller's QueueTimeout elapses before
// its ticket is admitted.
var ErrQueueTimeout = errors.New("timed out waiting for admission")

// minDrainSleep bounds computed drain-loop sleeps from below so clock skew
// cannot produce a busy spin.
const minDrainSleep = 5 * time.Millisecond

// ticket is one pending admission request.
type ticket struct {
	requestedAt time.Time
	release     chan struct{}
}

// queue holds the pending tickets and rolling admission windows for one
// category. All fields are guarded by mu; the draining flag guarantees at
// most one drain loop per queue.
type queue struct {
	mu       sync.Mutex
	policy   Policy
	pending  []*ticket
	second   []time.Time
	minute   []time.Time
	draining bool
}

// prune drops window entries that have left their rolling windows.
// Caller holds mu.
func (q *queue) prune(now time.Time) {
	cutSecond := now.Add(-secondWindow)
	for len(q.second) > 0 && !q.second[0].After(cutSecond) {
		q.second = q.second[1:]
	}
	cutMinute := now.Add(-minuteWindow)
	for len(q.minute) > 0 && !q.minute[0].After(cutMinute) {
		q.minute = q.minute[1:]
	}
}

// full reports whether either window is at its ceiling. Caller holds mu.
func (q *queue) full() bool {
	return len(q.second) >= q.policy.RequestsPerSecond ||
		len(q.minute) >= q.policy.RequestsPerMinute
}

// nextSlotWait computes how long until the oldest blocking admission leaves
// its window. Caller holds mu and has pruned; returns 0 if a slot is free.
func (q *queue) nextSlotWait(now time.Time) time.Duration {
	var wait time.Duration
	if len(q.second) >= q.policy.RequestsPerSecond {
		freeAt := q.second[len(q.second)-q.policy.RequestsPerSecond].Add(secondWindow)
		if d := freeAt.Sub(now); d > wait {
			wait = d
		}
	}
	if len(q.minute) >= q.policy.RequestsPerMinute {
		freeAt := q.minute[len(q.minute)-q.policy.RequestsPerMinute].Add(minuteWindow)
		if d := freeAt.Sub(now); d > wait {
			wait = d
		}
	}
	if wait > 0 && wait < minDrainSleep {
		wait = minDrainSleep
	}
	return wait
}

// Limiter admits outbound calls under per-category rate policies.
// Each category has its own FIFO queue and rolling windows, so a saturated
// heavy category cannot starve the default one.
type Limiter struct {
	queues map[Category]*queue
	logger zerolog.Logger

	// injectable clock for deterministic tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewLimiter creates a limiter with the given per-category policies.
func NewLimiter(defaultPolicy, heavyPolicy Policy, logger zerolog.Logger) *Limiter {
	return &Limiter{
		queues: map[Category]*queue{
			CategoryDefault: {policy: defaultPolicy.normalize()},
			CategoryHeavy:   {policy: heavyPolicy.normalize()},
		},
		logger: logger,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// SetClock replaces the limiter's time source (for testing).
func (l *Limiter) SetClock(now func() time.Time, sleep func(time.Duration)) {
	l.now = now
	l.sleep = sleep
}

// Policy returns the policy in effect for a category.
func (l *Limiter) Policy(cat Category) Policy {
	return l.queueFor(cat).policy
}

func (l *Limiter) queueFor(cat Category) *queue {
	if q, ok := l.queues[cat]; ok {
		return q
	}
	return l.queues[CategoryDefault]
}

// Admit enqueues a ticket in the category's FIFO queue and blocks until it
// is released by the drain loop. Returns ctx.Err() if the context ends
// first, or ErrQueueTimeout if the policy's QueueTimeout elapses. In both
// cases the abandoned ticket is still drained and counted against the
// rolling windows.
func (l *Limiter) Admit(ctx context.Context, cat Category) error {
	q := l.queueFor(cat)

	t := &ticket{
		requestedAt: l.now(),
		release:     make(chan struct{}),
	}

	q.mu.Lock()
	q.pending = append(q.pending, t)
	queueDepth.WithLabelValues(string(cat)).Set(float64(len(q.pending)))
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go l.drain(cat, q)
	}

	var timeout <-chan time.Time
	if q.policy.QueueTimeout > 0 {
		timer := time.NewTimer(q.policy.QueueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-t.release:
		admissionWaitSeconds.WithLabelValues(string(cat)).Observe(l.now().Sub(t.requestedAt).Seconds())
		return nil
	case <-timeout:
		queueTimeoutsTotal.WithLabelValues(string(cat)).Inc()
		l.logger.Warn().
			Str("category", string(cat)).
			Dur("queue_timeout", q.policy.QueueTimeout).
			Msg("Caller timed out waiting for admission")
		return ErrQueueTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain is the single admission loop for one queue. It releases pending
// tickets in FIFO order whenever the rolling windows have room, sleeping
// until the next slot frees otherwise, and exits once the queue is empty.
func (l *Limiter) drain(cat Category, q *queue) {
	for {
		q.mu.Lock()
		now := l.now()
		q.prune(now)

		if len(q.pending) == 0 {
			q.draining = false
			queueDepth.WithLabelValues(string(cat)).Set(0)
			q.mu.Unlock()
			return
		}

		if wait := q.nextSlotWait(now); wait > 0 {
			q.mu.Unlock()
			l.logger.Debug().
				Str("category", string(cat)).
				Dur("wait", wait).
				Msg("Rate window full - delaying admission")
			l.sleep(wait)
			continue
		}

		// Release the oldest tickets back-to-back, at most Burst per pass.
		released := 0
		for released < q.policy.Burst && len(q.pending) > 0 {
			now = l.now()
			q.prune(now)
			if q.full() {
				break
			}
			t := q.pending[0]
			q.pending = q.pending[1:]
			q.second = append(q.second, now)
			q.minute = append(q.minute, now)
			close(t.release)
			released++
			admissionsTotal.WithLabelValues(string(cat)).Inc()
		}
		queueDepth.WithLabelValues(string(cat)).Set(float64(len(q.pending)))
		q.mu.Unlock()
	}
}
