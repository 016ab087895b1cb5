package access

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the cool-down between repeated decisions
// for the same identity. A face lingering in frame is re-recognised
// many times per second; without the cool-down every hit would fire
// the relay again.
const DefaultDebounceWindow = 5 * time.Second

// Debouncer rate-limits decisions per identity. The state is explicit
// (last identity plus its expiry) rather than a timer that clears a
// flag, so a stalled caller can never leave the terminal stuck in
// cool-down.
type Debouncer struct {
	mu           sync.Mutex
	window       time.Duration
	lastIdentity string
	expiresAt    time.Time
}

// NewDebouncer creates a debouncer with the given cool-down window.
// A non-positive window falls back to DefaultDebounceWindow.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{window: window}
}

// Allow reports whether a decision for identity may proceed at now.
// Allowing starts a new cool-down for that identity; a different
// identity always passes and takes over the window.
func (d *Debouncer) Allow(identity string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if identity == d.lastIdentity && now.Before(d.expiresAt) {
		return false
	}
	d.lastIdentity = identity
	d.expiresAt = now.Add(d.window)
	return true
}

// Reset clears the cool-down state, letting the next decision for any
// identity proceed immediately.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastIdentity = ""
	d.expiresAt = time.Time{}
}
