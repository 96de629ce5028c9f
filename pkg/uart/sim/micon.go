package sim

import "sync"

// Frame is a command received by the simulated microcontroller.
type Frame struct {
	Cmd  byte
	Data []byte
}

// Status codes in the simulated replies.
const (
	StatusOK  byte = 0x00
	StatusNak byte = 0xf0
)

const idleByte byte = 0xff

// Micon simulates the supervisory microcontroller.
//
// Frames are [len, cmd, data[len]..., checksum] where the bytes sum to 0
// mod 256. 0xFF is the idle pattern and resets framing. A valid frame is
// answered with [0x01, cmd, 0x00, checksum], an invalid one with status
// 0xF0.
type Micon struct {
	frames []Frame
	buf    []byte

	silent  int
	corrupt int
	nak     int
	lock    sync.Mutex
}

// NewMicon creates a simulated microcontroller.
func NewMicon() *Micon {
	return &Micon{}
}

// Silence drops the replies of the next n frames.
func (m *Micon) Silence(n int) *Micon {
	m.lock.Lock()
	m.silent += n
	m.lock.Unlock()
	return m
}

// Corrupt breaks the reply checksum of the next n frames.
func (m *Micon) Corrupt(n int) *Micon {
	m.lock.Lock()
	m.corrupt += n
	m.lock.Unlock()
	return m
}

// Nak rejects the next n frames.
func (m *Micon) Nak(n int) *Micon {
	m.lock.Lock()
	m.nak += n
	m.lock.Unlock()
	return m
}

// Frames returns the valid frames received so far.
func (m *Micon) Frames() []Frame {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Frame(nil), m.frames...)
}

// Commands returns the command bytes of valid frames received so far.
func (m *Micon) Commands() []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	cmds := make([]byte, len(m.frames))
	for n, f := range m.frames {
		cmds[n] = f.Cmd
	}
	return cmds
}

// Receive implements Peer.
func (m *Micon) Receive(b byte) []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	if len(m.buf) == 0 && b == idleByte {
		return nil
	}
	m.buf = append(m.buf, b)
	if len(m.buf) < 3 || len(m.buf) < int(m.buf[0])+3 {
		return nil
	}
	frame := m.buf
	m.buf = nil

	var sum byte
	for _, c := range frame {
		sum += c
	}
	cmd, status := frame[1], StatusOK
	switch {
	case sum != 0:
		status = StatusNak
	case m.nak > 0:
		m.nak--
		status = StatusNak
	default:
		m.frames = append(m.frames, Frame{Cmd: cmd, Data: append([]byte(nil), frame[2:len(frame)-1]...)})
	}

	if m.silent > 0 {
		m.silent--
		return nil
	}
	reply := []byte{0x01, cmd, status, 0}
	reply[3] = -(reply[0] + reply[1] + reply[2])
	if m.corrupt > 0 {
		m.corrupt--
		reply[3]++
	}
	return reply
}
