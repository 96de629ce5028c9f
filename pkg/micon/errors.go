package micon

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted indicates no attempt of a command was acknowledged.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrShortPayload indicates a payload too short to be a command.
	ErrShortPayload = errors.New("command payload too short")
)

// Outcome classifies a single attempt.
type Outcome int

// Attempt outcomes.
const (
	// OutcomeAck means the expected acknowledgement was received.
	OutcomeAck Outcome = iota
	// OutcomeShort means too few bytes arrived, the link was resynchronized.
	OutcomeShort
	// OutcomeChecksum means the response checksum was wrong.
	OutcomeChecksum
	// OutcomeNak means a well-formed response other than the ack arrived.
	OutcomeNak
)

var outcomeNames = map[Outcome]string{
	OutcomeAck:      "ack",
	OutcomeShort:    "short response",
	OutcomeChecksum: "checksum error",
	OutcomeNak:      "nak or illegal data",
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// LinkError reports a command that was never acknowledged.
type LinkError struct {
	Frame    Frame
	Attempts int
	Last     Outcome
}

// Error implements error.
func (e *LinkError) Error() string {
	return fmt.Sprintf("command [%s]: %v after %d attempts, last: %v",
		e.Frame, ErrRetriesExhausted, e.Attempts, e.Last)
}

// Unwrap returns ErrRetriesExhausted.
func (e *LinkError) Unwrap() error {
	return ErrRetriesExhausted
}
