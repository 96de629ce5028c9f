package micon

import "time"

// Link policy defaults. These are choices of this driver, not
// requirements of the microcontroller.
const (
	// RetryLimit is the total number of attempts per command.
	RetryLimit = 3
	// ResponseCapacity is the size of the response buffer and of the
	// resynchronization preamble.
	ResponseCapacity = 40
	// MinResponseLen is the shortest response carrying an ack and its
	// checksum.
	MinResponseLen = 4
	// FlushSettle is the pause after the preamble before draining.
	FlushSettle = 100 * time.Millisecond
	// CommandInterval is the pause after a command completes, giving the
	// microcontroller time before it accepts the next one.
	CommandInterval = 10 * time.Millisecond
	// PreambleByte fills the resynchronization preamble.
	PreambleByte byte = 0xff
)

// Policy tunes the retry behavior of a Sender.
type Policy struct {
	Attempts         int
	ResponseCapacity int
	FlushSettle      time.Duration
	CommandInterval  time.Duration
}

// DefaultPolicy returns the default policy.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:         RetryLimit,
		ResponseCapacity: ResponseCapacity,
		FlushSettle:      FlushSettle,
		CommandInterval:  CommandInterval,
	}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.ResponseCapacity < MinResponseLen {
		p.ResponseCapacity = def.ResponseCapacity
	}
	if p.FlushSettle < 0 {
		p.FlushSettle = 0
	}
	if p.CommandInterval < 0 {
		p.CommandInterval = 0
	}
	return p
}
