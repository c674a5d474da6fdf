package server

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// RateLimiter applies per-connection sliding-window rate limiting to
// websocket traffic. Each connection keeps only the timestamps inside the
// current window, so memory stays bounded to maxRequests per connection.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow reports whether the connection may send another message right now.
// Timestamps older than the window are dropped before counting.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	valid = append(valid, now)
	r.requests[connectionID] = valid
	return true
}

// Cleanup drops connections whose every timestamp has aged out of the window.
// Called from the periodic sweep so disconnected clients do not accumulate.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)
	for connID, timestamps := range r.requests {
		active := false
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				active = true
				break
			}
		}
		if !active {
			delete(r.requests, connID)
		}
	}
}

// RemoveConnection discards rate limit state for a closed connection.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ValidateMessageType rejects websocket message types the server does not
// handle, so typos get a clear error instead of silence.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":          true,
		"user-login":    true,
		"skor-disimpan": true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("TIPE_PESAN_TIDAK_VALID: unknown message type '%s'", msgType)
	}
	return nil
}

// ValidatePlayerName checks display name requirements shared by registration
// and the websocket login announcement.
func ValidatePlayerName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("NAMA_TIDAK_VALID: name cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > 50 {
		return fmt.Errorf("NAMA_TIDAK_VALID: name too long (max 50 characters)")
	}
	return nil
}
