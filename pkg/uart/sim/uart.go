// Package sim simulates a 16550 register window wired to a peer device.
package sim

import (
	"sync"

	"github.com/robotalks/micon.go/pkg/uart"
)

// Peer is the device at the far end of the simulated line.
type Peer interface {
	// Receive is called for every byte written to the transmit register
	// and returns the bytes the peer sends back, if any.
	Receive(b byte) []byte
}

// ReceiveFunc is func form of Peer.
type ReceiveFunc func(b byte) []byte

// Receive implements Peer.
func (f ReceiveFunc) Receive(b byte) []byte {
	return f(b)
}

// UART is a simulated 16550 register window.
// Transmitted bytes are delivered to Peer synchronously and its reply is
// queued in the receive FIFO.
type UART struct {
	Peer  Peer
	Shift uint

	regs [uart.RegCount]byte
	dll  byte
	dlm  byte
	rx   []byte
	tx   []byte
	lock sync.Mutex
}

// NewUART creates a simulated UART with the default register stride.
func NewUART(peer Peer) *UART {
	return &UART{Peer: peer, Shift: uart.DefaultRegShift}
}

// Read32 implements uart.Window.
func (u *UART) Read32(off uint32) uint32 {
	u.lock.Lock()
	defer u.lock.Unlock()
	reg, ok := u.reg(off)
	if !ok {
		return 0
	}
	dlab := u.regs[uart.RegLCR]&uart.LCRDLAB != 0
	switch reg {
	case uart.RegRX:
		if dlab {
			return uint32(u.dll)
		}
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return uint32(b)
	case uart.RegIER:
		if dlab {
			return uint32(u.dlm)
		}
	case uart.RegIIR:
		return 0x01 // no interrupt pending
	case uart.RegLSR:
		lsr := uart.LSRTHRE | uart.LSRTEMT
		if len(u.rx) > 0 {
			lsr |= uart.LSRDataReady
		}
		return uint32(lsr)
	}
	return uint32(u.regs[reg])
}

// Write32 implements uart.Window.
func (u *UART) Write32(off uint32, val uint32) {
	reg, ok := u.reg(off)
	if !ok {
		return
	}
	b := byte(val)
	u.lock.Lock()
	dlab := u.regs[uart.RegLCR]&uart.LCRDLAB != 0
	switch reg {
	case uart.RegTX:
		if dlab {
			u.dll = b
			u.lock.Unlock()
			return
		}
		u.tx = append(u.tx, b)
		peer := u.Peer
		u.lock.Unlock()
		if peer != nil {
			if reply := peer.Receive(b); len(reply) > 0 {
				u.lock.Lock()
				u.rx = append(u.rx, reply...)
				u.lock.Unlock()
			}
		}
		return
	case uart.RegIER:
		if dlab {
			u.dlm = b
		} else {
			u.regs[reg] = b
		}
	case uart.RegFCR:
		if b&uart.FCRClearRX != 0 {
			u.rx = nil
		}
		u.regs[reg] = b
	case uart.RegLSR, uart.RegMSR:
		// read only
	default:
		u.regs[reg] = b
	}
	u.lock.Unlock()
}

// Inject queues bytes in the receive FIFO as if sent by the peer.
func (u *UART) Inject(data ...byte) {
	u.lock.Lock()
	u.rx = append(u.rx, data...)
	u.lock.Unlock()
}

// Transmitted returns and clears all bytes written to the transmitter.
func (u *UART) Transmitted() []byte {
	u.lock.Lock()
	defer u.lock.Unlock()
	tx := u.tx
	u.tx = nil
	return tx
}

// Divisor returns the latched divisor.
func (u *UART) Divisor() uint16 {
	u.lock.Lock()
	defer u.lock.Unlock()
	return uint16(u.dlm)<<8 | uint16(u.dll)
}

// Reg returns the shadow value of a writable register.
func (u *UART) Reg(reg int) byte {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.regs[reg]
}

func (u *UART) reg(off uint32) (int, bool) {
	if off&(1<<u.Shift-1) != 0 {
		return 0, false
	}
	reg := int(off >> u.Shift)
	return reg, reg < uart.RegCount
}
