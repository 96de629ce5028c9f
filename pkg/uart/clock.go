package uart

import "time"

// Clock provides the delays used by the polling loops.
type Clock interface {
	Sleep(time.Duration)
}

// SleepFunc is func form of Clock.
type SleepFunc func(time.Duration)

// Sleep implements Clock.
func (f SleepFunc) Sleep(d time.Duration) {
	f(d)
}

// SystemClock sleeps on the wall clock.
type SystemClock struct{}

// Sleep implements Clock.
func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
