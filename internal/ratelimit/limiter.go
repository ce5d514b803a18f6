// Package ratelimit provides per-client request limiting with two backends:
// Redis fixed-window counters when REDIS_URL is configured, and an in-memory
// window limiter otherwise. Both satisfy the same Limiter contract.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the rate limiting window shared by both backends
const DefaultWindow = time.Minute

// Limiter decides whether a request from the given client identifier is
// within the configured rate.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// MemoryLimiter implements a fixed-window in-memory rate limiter
type MemoryLimiter struct {
	mu       sync.Mutex
	requests map[string]*clientWindow
	limit    int
	window   time.Duration
}

type clientWindow struct {
	count     int
	resetTime time.Time
}

// NewMemoryLimiter creates an in-memory limiter allowing limit requests per
// window and starts its cleanup goroutine.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	rl := &MemoryLimiter{
		requests: make(map[string]*clientWindow),
		limit:    limit,
		window:   window,
	}

	go rl.cleanup()

	return rl
}

// cleanup removes expired entries periodically
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for id, client := range rl.requests {
			if now.After(client.resetTime) {
				delete(rl.requests, id)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow checks if a request from the identifier should be admitted
func (rl *MemoryLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, ok := rl.requests[identifier]
	if !ok || now.After(client.resetTime) {
		rl.requests[identifier] = &clientWindow{count: 1, resetTime: now.Add(rl.window)}
		return true, nil
	}

	if client.count >= rl.limit {
		return false, nil
	}
	client.count++
	return true, nil
}
