package schedule

import "time"

// Scheduler is the engine's only source of time and deferred execution, so
// tests can substitute a deterministic implementation.
type Scheduler interface {
	Now() time.Time

	// After schedules fn to run once, d after now. The returned cancel
	// function stops a pending timer and is a no-op once it has fired;
	// callers that need stronger guarantees guard the callback themselves.
	After(d time.Duration, fn func()) (cancel func())
}

// New returns a Scheduler backed by the wall clock.
func New() Scheduler {
	return sysScheduler{}
}

type sysScheduler struct{}

func (sysScheduler) Now() time.Time {
	return time.Now()
}

func (sysScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() {
		t.Stop()
	}
}
