// Package globaltime is the process-wide clock. Commands read it once per
// invocation and pass the timestamp down explicitly, so swapping the source
// here pins every derived time in a test.
package globaltime

import (
	"sync"
	"time"
)

var (
	sourceMu sync.RWMutex
	source   = time.Now
)

// Now returns the current time from the active source.
func Now() time.Time {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return source()
}

// Freeze pins the clock to a fixed instant until Restore is called.
func Freeze(at time.Time) {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	source = func() time.Time { return at }
}

// Restore puts the wall clock back as the source.
func Restore() {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	source = time.Now
}
