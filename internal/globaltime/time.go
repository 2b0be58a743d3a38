// Package globaltime is the process-wide clock. Production code reads it
// instead of time.Now so tests can pin the clock around time-window logic.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	frozen *time.Time
)

// Now returns the current time, or the pinned time when a test set one.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	if frozen != nil {
		return *frozen
	}
	return time.Now()
}

// UTC is Now in UTC.
func UTC() time.Time {
	return Now().UTC()
}

// SetMockTime pins the clock. Pair with ResetTime in a defer.
func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	frozen = &t
}

// ResetTime unpins the clock.
func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	frozen = nil
}
