package micon

import "fmt"

// Checksum returns the byte that makes payload sum to 0 mod 256.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum -= b
	}
	return sum
}

// Frame is a payload followed by its checksum.
type Frame []byte

// NewFrame builds a frame from a payload. The payload is copied.
func NewFrame(payload []byte) Frame {
	f := make(Frame, len(payload)+1)
	copy(f, payload)
	f[len(payload)] = Checksum(payload)
	return f
}

// Payload returns the payload part of the frame.
func (f Frame) Payload() []byte {
	if len(f) == 0 {
		return nil
	}
	return f[:len(f)-1]
}

// Valid checks the trailing checksum.
func (f Frame) Valid() bool {
	return len(f) > 0 && Checksum(f.Payload()) == f[len(f)-1]
}

// String formats the frame as hex bytes.
func (f Frame) String() string {
	return fmt.Sprintf("% x", []byte(f))
}

// AckLen is the length of an acknowledgement without its checksum.
const AckLen = 3

// ExpectedAck returns the acknowledgement the microcontroller sends for
// a command payload. The payload must have at least 2 bytes.
func ExpectedAck(payload []byte) [AckLen]byte {
	return [AckLen]byte{0x01, payload[1], 0x00}
}

// ResponseChecksumOK checks that the first MinResponseLen bytes of a
// response sum to 0 mod 256.
func ResponseChecksumOK(resp []byte) bool {
	if len(resp) < MinResponseLen {
		return false
	}
	var sum byte
	for _, b := range resp[:MinResponseLen] {
		sum += b
	}
	return sum == 0
}

// IsAck compares the head of a response with the expected acknowledgement.
func IsAck(resp []byte, ack [AckLen]byte) bool {
	return len(resp) >= AckLen &&
		resp[0] == ack[0] && resp[1] == ack[1] && resp[2] == ack[2]
}
