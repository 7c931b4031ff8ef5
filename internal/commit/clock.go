package commit

import "time"

// Clock supplies the timepoint a commit is assigned at open. Tests inject
// a deterministic Clock instead of wall-clock time, the same way the
// teacher injects a driver.Conn into NewServer rather than dialing inside
// it.
type Clock interface {
	Now() int64
}

// SystemClock is the production Clock, backed by the wall clock.
type SystemClock struct{}

// Now returns the current time as nanoseconds since the Unix epoch.
func (SystemClock) Now() int64 {
	return time.Now().UnixNano()
}
