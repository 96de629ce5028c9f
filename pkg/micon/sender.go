package micon

import (
	"bytes"

	"github.com/golang/glog"

	"github.com/robotalks/micon.go/pkg/uart"
)

// Transport moves bytes over the line. uart.Line implements it.
type Transport interface {
	// Send writes all bytes.
	Send(data []byte)
	// Recv reads up to max bytes, stopping at the first timeout.
	Recv(max int) []byte
}

// Attempt records one delivery attempt of a command.
type Attempt struct {
	N        int
	Response []byte
	Outcome  Outcome
	// Drained is what the peer emitted after the preamble (OutcomeShort only).
	Drained []byte
}

// Result is the best-effort outcome of a command. Err is nil when the
// command was acknowledged.
type Result struct {
	Frame    Frame
	Attempts []Attempt
	Err      error
}

// OK indicates the command was acknowledged.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Sender runs commands over a Transport.
type Sender struct {
	Policy Policy

	transport Transport
	clock     uart.Clock
}

// NewSender creates a Sender with the default policy.
func NewSender(t Transport, clock uart.Clock) *Sender {
	if clock == nil {
		clock = uart.SystemClock{}
	}
	return &Sender{Policy: DefaultPolicy(), transport: t, clock: clock}
}

// SendCommand sends a command and reports whether it was acknowledged.
func (s *Sender) SendCommand(payload []byte) error {
	return s.Send(payload).Err
}

// Send sends a command, retrying until it is acknowledged or the attempts
// are exhausted. The command interval is always waited before returning.
func (s *Sender) Send(payload []byte) (res Result) {
	if len(payload) < 2 {
		res.Err = ErrShortPayload
		return
	}
	policy := s.Policy.normalize()
	res.Frame = NewFrame(payload)
	ack := ExpectedAck(payload)

	for n := 1; n <= policy.Attempts; n++ {
		glog.V(2).Infof("micon > [%s] attempt %d", res.Frame, n)
		s.transport.Send(res.Frame)
		resp := s.transport.Recv(policy.ResponseCapacity)
		glog.V(2).Infof("micon < [% x]", resp)
		attempt := Attempt{N: n, Response: resp}

		switch {
		case len(resp) < MinResponseLen:
			glog.Errorf("micon: receive failed (%d bytes)", len(resp))
			attempt.Outcome = OutcomeShort
			attempt.Drained = s.resync(policy)
		case !ResponseChecksumOK(resp):
			glog.Errorf("micon: checksum error: received [% x]", resp[:MinResponseLen])
			attempt.Outcome = OutcomeChecksum
		case IsAck(resp, ack):
			attempt.Outcome = OutcomeAck
			res.Attempts = append(res.Attempts, attempt)
			s.clock.Sleep(policy.CommandInterval)
			return
		default:
			attempt.Outcome = OutcomeNak
		}
		if attempt.Outcome != OutcomeShort {
			glog.Errorf("micon: NAK or illegal data received")
		}
		res.Attempts = append(res.Attempts, attempt)
	}

	last := res.Attempts[len(res.Attempts)-1]
	res.Err = &LinkError{Frame: res.Frame, Attempts: len(res.Attempts), Last: last.Outcome}
	glog.Warningf("micon: %v", res.Err)
	s.clock.Sleep(policy.CommandInterval)
	return
}

// resync floods the line with the preamble so the peer returns to idle,
// then drains whatever it answers. The drained bytes are not validated.
func (s *Sender) resync(policy Policy) []byte {
	s.transport.Send(bytes.Repeat([]byte{PreambleByte}, policy.ResponseCapacity))
	s.clock.Sleep(policy.FlushSettle)
	return s.transport.Recv(policy.ResponseCapacity)
}
