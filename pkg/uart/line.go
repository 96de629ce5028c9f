package uart

import (
	"time"

	"github.com/golang/glog"
)

// Poll policy defaults.
const (
	// DefaultReadPolls is how many times the data-ready bit is polled
	// before a byte read times out.
	DefaultReadPolls = 10
	// DefaultPollInterval is the delay between two data-ready polls.
	DefaultPollInterval = time.Millisecond
)

// FIFO setup written by Configure: enable and clear both FIFOs.
const fcrReset = FCREnable | FCRClearRX | FCRClearTX

// Line owns a polled serial line on a register window.
// It is not safe for concurrent use.
type Line struct {
	ReadPolls    int
	PollInterval time.Duration

	win      Window
	shift    uint
	tickRate uint32
	clock    Clock

	divisor    uint16
	format     Format
	configured bool
}

// Option configures a Line.
type Option func(*Line)

// WithClock sets the clock used between polls.
func WithClock(c Clock) Option {
	return func(l *Line) {
		l.clock = c
	}
}

// WithRegShift sets the register stride.
func WithRegShift(shift uint) Option {
	return func(l *Line) {
		l.shift = shift
	}
}

// WithReadPolls sets the poll count and interval of a byte read.
func WithReadPolls(polls int, interval time.Duration) Option {
	return func(l *Line) {
		l.ReadPolls, l.PollInterval = polls, interval
	}
}

// NewLine creates a Line on a register window clocked at tickRate Hz.
func NewLine(win Window, tickRate uint32, opts ...Option) *Line {
	l := &Line{
		ReadPolls:    DefaultReadPolls,
		PollInterval: DefaultPollInterval,
		win:          win,
		shift:        DefaultRegShift,
		tickRate:     tickRate,
		clock:        SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Divisor computes the baud divisor for a tick rate, rounded to nearest.
func Divisor(tickRate uint32, baud int) uint16 {
	b := uint64(baud)
	return uint16((uint64(tickRate) + 8*b) / (16 * b))
}

// TickRate returns the input clock of the UART in Hz.
func (l *Line) TickRate() uint32 {
	return l.tickRate
}

// Divisor computes the divisor of this line for the baud rate.
func (l *Line) Divisor(baud int) uint16 {
	return Divisor(l.tickRate, baud)
}

// Config returns the most recently fixed divisor and format.
// ok is false if Configure was never called.
func (l *Line) Config() (divisor uint16, format Format, ok bool) {
	return l.divisor, l.format, l.configured
}

// Window returns the register window.
func (l *Line) Window() Window {
	return l.win
}

// Clock returns the clock used by the line.
func (l *Line) Clock() Clock {
	return l.clock
}

// ReadReg reads a register by index.
func (l *Line) ReadReg(reg int) byte {
	return byte(l.win.Read32(Offset(reg, l.shift)))
}

// WriteReg writes a register by index.
func (l *Line) WriteReg(reg int, val byte) {
	l.win.Write32(Offset(reg, l.shift), uint32(val))
}

// Configure reprograms the line regardless of its previous state.
// The write order leaves the divisor latch closed, interrupts off,
// FIFOs cleared and modem lines deasserted.
func (l *Line) Configure(divisor uint16, format Format) {
	format &^= Format(LCRDLAB)
	l.WriteReg(RegLCR, byte(format)|LCRDLAB)
	l.WriteReg(RegDLL, byte(divisor))
	l.WriteReg(RegDLM, byte(divisor>>8))
	l.WriteReg(RegLCR, byte(format))
	l.WriteReg(RegIER, 0)
	l.WriteReg(RegFCR, fcrReset)
	l.WriteReg(RegMCR, 0)
	l.divisor, l.format, l.configured = divisor, format, true
	glog.V(2).Infof("line configured: divisor=%d format=%s", divisor, format)
}

// RecvByte polls for one received byte. It returns false when no byte
// arrived within ReadPolls polls.
func (l *Line) RecvByte() (byte, bool) {
	for n := l.ReadPolls; ; {
		if l.ReadReg(RegLSR)&LSRDataReady != 0 {
			return l.ReadReg(RegRX), true
		}
		if n--; n <= 0 {
			return 0, false
		}
		l.clock.Sleep(l.PollInterval)
	}
}

// SendByte waits for the transmit holding register and writes b.
// There is no timeout, the transmitter always drains eventually.
func (l *Line) SendByte(b byte) {
	for l.ReadReg(RegLSR)&LSRTHRE == 0 {
	}
	l.WriteReg(RegTX, b)
}

// Recv reads up to max bytes and stops at the first byte timeout.
// The returned slice holds the bytes actually captured.
func (l *Line) Recv(max int) []byte {
	buf := make([]byte, max)
	n := 0
	for ; n < max; n++ {
		b, ok := l.RecvByte()
		if !ok {
			break
		}
		buf[n] = b
	}
	return buf[:n]
}

// Send writes all bytes in order.
func (l *Line) Send(data []byte) {
	for _, b := range data {
		l.SendByte(b)
	}
}
