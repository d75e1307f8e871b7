package ratelimiter

import (
	"sync"
	"time"
)

// LoginThrottle tracks failed logins per client IP over a sliding window.
// An IP with maxAttempts failures inside the window is locked out until the
// oldest of them ages past the window. A success resets the IP.
type LoginThrottle struct {
	mu          sync.Mutex
	failures    map[string][]time.Time
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

func NewLoginThrottle(maxAttempts int, window time.Duration) *LoginThrottle {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &LoginThrottle{
		failures:    make(map[string][]time.Time),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Test helper.
func (t *LoginThrottle) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Locked reports whether further attempts from ip should be refused.
func (t *LoginThrottle) Locked(ip string) bool {
	if ip == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.recent(ip, t.now())) >= t.maxAttempts
}

// Failure records a failed attempt and reports whether ip is now locked.
func (t *LoginThrottle) Failure(ip string) bool {
	if ip == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	attempts := append(t.recent(ip, now), now)
	// Only the newest maxAttempts decide the lock.
	if len(attempts) > t.maxAttempts {
		attempts = attempts[len(attempts)-t.maxAttempts:]
	}
	t.failures[ip] = attempts
	t.prune(now)
	return len(attempts) >= t.maxAttempts
}

// Success clears the failure history for ip.
func (t *LoginThrottle) Success(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, ip)
}

// RetryAfter is the time until the oldest counted failure leaves the
// window, or zero when ip is not locked.
func (t *LoginThrottle) RetryAfter(ip string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	attempts := t.recent(ip, now)
	if len(attempts) < t.maxAttempts {
		return 0
	}
	return attempts[len(attempts)-t.maxAttempts].Add(t.window).Sub(now)
}

// recent trims ip's failures to the window and returns them oldest first.
// Caller holds mu.
func (t *LoginThrottle) recent(ip string, now time.Time) []time.Time {
	attempts, ok := t.failures[ip]
	if !ok {
		return nil
	}
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	if i == len(attempts) {
		delete(t.failures, ip)
		return nil
	}
	attempts = attempts[i:]
	t.failures[ip] = attempts
	return attempts
}

// prune drops IPs whose failures have all aged out. Caller holds mu.
func (t *LoginThrottle) prune(now time.Time) {
	if len(t.failures) < 1024 {
		return
	}
	cutoff := now.Add(-t.window)
	for ip, attempts := range t.failures {
		if !attempts[len(attempts)-1].After(cutoff) {
			delete(t.failures, ip)
		}
	}
}
