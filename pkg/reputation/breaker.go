package reputation

import (
	"math"
	"sync"
	"time"

	"github.com/zpam/spamscore/pkg/config"
)

// HealthState summarizes recent resolver behaviour
type HealthState string

const (
	Healthy   HealthState = "healthy"
	Degraded  HealthState = "degraded"
	Unhealthy HealthState = "unhealthy"
)

// BreakerStats is a snapshot of the breaker
type BreakerStats struct {
	State          HealthState `json:"state"`
	TotalRequests  int64       `json:"total_requests"`
	SuccessCount   int64       `json:"success_count"`
	FailureCount   int64       `json:"failure_count"`
	ConsecFailures int         `json:"consecutive_failures"`
	LastError      string      `json:"last_error,omitempty"`
	LastErrorTime  *time.Time  `json:"last_error_time,omitempty"`
	AvgLatencyMs   float64     `json:"avg_latency_ms"`
	InCooldown     bool        `json:"in_cooldown"`
	CooldownUntil  *time.Time  `json:"cooldown_until,omitempty"`
}

// Breaker suspends blocklist lookups after consecutive resolver failures.
// The cooldown doubles with every further failure up to a ceiling and is
// cleared by the first success.
type Breaker struct {
	mu sync.RWMutex

	threshold   int
	cooldown    time.Duration
	maxCooldown time.Duration

	totalRequests  int64
	successCount   int64
	failureCount   int64
	consecFailures int
	lastError      string
	lastErrorTime  time.Time
	totalLatency   time.Duration
	cooldownUntil  time.Time

	now func() time.Time
}

// NewBreaker creates a breaker from configuration
func NewBreaker(cfg config.BreakerConfig) *Breaker {
	b := &Breaker{
		threshold:   cfg.FailureThreshold,
		cooldown:    time.Duration(cfg.CooldownMs) * time.Millisecond,
		maxCooldown: time.Duration(cfg.MaxCooldownMs) * time.Millisecond,
		now:         time.Now,
	}
	if b.threshold < 1 {
		b.threshold = 3
	}
	if b.cooldown <= 0 {
		b.cooldown = 5 * time.Second
	}
	if b.maxCooldown < b.cooldown {
		b.maxCooldown = b.cooldown
	}
	return b
}

// RecordSuccess resets the failure streak
func (b *Breaker) RecordSuccess(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	b.successCount++
	b.consecFailures = 0
	b.totalLatency += latency
	b.cooldownUntil = time.Time{}
}

// RecordFailure counts a failed lookup and opens the breaker once the
// threshold is reached
func (b *Breaker) RecordFailure(errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.totalRequests++
	b.failureCount++
	b.consecFailures++
	b.lastError = errMsg
	b.lastErrorTime = now

	if b.consecFailures >= b.threshold {
		backoff := time.Duration(math.Min(
			float64(b.cooldown)*math.Pow(2, float64(b.consecFailures-b.threshold)),
			float64(b.maxCooldown),
		))
		b.cooldownUntil = now.Add(backoff)
	}
}

// Allow reports whether a lookup may be attempted
func (b *Breaker) Allow() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cooldownUntil.IsZero() || !b.now().Before(b.cooldownUntil)
}

// Stats returns a snapshot of the breaker
func (b *Breaker) Stats() BreakerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := BreakerStats{
		TotalRequests:  b.totalRequests,
		SuccessCount:   b.successCount,
		FailureCount:   b.failureCount,
		ConsecFailures: b.consecFailures,
		LastError:      b.lastError,
	}
	if !b.lastErrorTime.IsZero() {
		t := b.lastErrorTime
		s.LastErrorTime = &t
	}
	if b.successCount > 0 {
		s.AvgLatencyMs = float64(b.totalLatency.Microseconds()) / 1000.0 / float64(b.successCount)
	}

	switch {
	case b.consecFailures >= 2*b.threshold:
		s.State = Unhealthy
	case b.consecFailures >= b.threshold:
		s.State = Degraded
	default:
		s.State = Healthy
	}

	if !b.cooldownUntil.IsZero() && b.now().Before(b.cooldownUntil) {
		s.InCooldown = true
		t := b.cooldownUntil
		s.CooldownUntil = &t
	}
	return s
}
