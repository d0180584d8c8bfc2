// Package ratelimit implements the admission queue that throttles outbound
// calls to the upstream API. Callers request a ticket before each transport
// attempt; tickets are released in FIFO order at a rate that keeps the
// rolling per-second and per-minute admission counts under the configured
// ceilings.
package ratelimit

import (
	"strings"
	"time"
)

// Rolling window lengths used for admission accounting.
const (
	secondWindow = 1000 * time.Millisecond
	minuteWindow = 60 * time.Second
)

// Category selects which rate-limit policy applies to an endpoint.
type Category string

const (
	// CategoryDefault applies to most endpoints.
	CategoryDefault Category = "default"

	// CategoryHeavy applies to the ranking endpoint family, which the
	// upstream provider budgets more strictly.
	CategoryHeavy Category = "heavy"
)

// CategoryFor returns the rate-limit category for a dotted endpoint
// identifier.
func CategoryFor(endpoint string) Category {
	if strings.HasPrefix(endpoint, "ranking.") {
		return CategoryHeavy
	}
	return CategoryDefault
}

// Policy holds the admission ceilings for one category.
type Policy struct {
	// RequestsPerSecond caps admissions in any rolling 1000ms window.
	RequestsPerSecond int

	// RequestsPerMinute caps admissions in any rolling 60s window.
	RequestsPerMinute int

	// Burst caps how many tickets one drain pass releases back-to-back
	// before re-checking the windows.
	Burst int

	// QueueTimeout bounds how long a caller may wait for admission.
	// Zero means wait indefinitely. A timed-out caller receives
	// ErrQueueTimeout; its ticket is still drained eventually and counted
	// against the windows.
	QueueTimeout time.Duration
}

// DefaultPolicy returns the standard-category policy.
func DefaultPolicy() Policy {
	return Policy{
		RequestsPerSecond: 8,
		RequestsPerMinute: 480,
		Burst:             12,
	}
}

// HeavyPolicy returns the stricter policy for the heavy category.
func HeavyPolicy() Policy {
	return Policy{
		RequestsPerSecond: 5,
		RequestsPerMinute: 300,
		Burst:             5,
	}
}

// normalize fills zero fields with sane values.
func (p Policy) normalize() Policy {
	if p.RequestsPerSecond <= 0 {
		p.RequestsPerSecond = DefaultPolicy().RequestsPerSecond
	}
	if p.RequestsPerMinute <= 0 {
		p.RequestsPerMinute = p.RequestsPerSecond * 60
	}
	if p.Burst <= 0 {
		p.Burst = p.RequestsPerSecond
	}
	return p
}
