// Package ratelimit throttles MCP tool calls with per-key token buckets.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter keeps one token bucket per key. Buckets start full. It is safe
// for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	rate    float64 // tokens per second
	burst   float64
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// PerMinute creates a limiter allowing n calls per minute.
func PerMinute(n float64, burst int) *Limiter {
	return NewLimiter(n/60, burst)
}

func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, seen: now}
		l.buckets[key] = b
		return b
	}
	if d := now.Sub(b.seen).Seconds(); d > 0 {
		b.tokens = min(l.burst, b.tokens+d*l.rate)
		b.seen = now
	}
	return b
}

// Allow takes a token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.refill(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the whole tokens currently available for key.
func (l *Limiter) Tokens(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.refill(key).tokens)
}

// ToolLimiters maps tool names to limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the limits of the episim MCP tools. Infection
// listings are the most expensive queries and get the tightest limit.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"episim_runs":         PerMinute(60, 10),
		"episim_reports":      PerMinute(60, 10),
		"episim_infections":   PerMinute(30, 5),
		"episim_restrictions": PerMinute(60, 10),
	}
}

// Check returns an error when tool has exhausted its limit. Tools without
// a limiter are never limited.
func (tl ToolLimiters) Check(tool string) error {
	l, ok := tl[tool]
	if !ok {
		return nil
	}
	if !l.Allow(tool) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", tool)
	}
	return nil
}
