package uart

import "sync"

// Register indices of a 16550 compatible UART.
// Several registers share an index and are selected by direction or DLAB.
const (
	RegRX  = 0 // receive buffer (read, DLAB=0)
	RegTX  = 0 // transmit holding (write, DLAB=0)
	RegDLL = 0 // divisor latch low (DLAB=1)
	RegIER = 1 // interrupt enable (DLAB=0)
	RegDLM = 1 // divisor latch high (DLAB=1)
	RegIIR = 2 // interrupt identification (read)
	RegFCR = 2 // FIFO control (write)
	RegLCR = 3 // line control
	RegMCR = 4 // modem control
	RegLSR = 5 // line status
	RegMSR = 6 // modem status
	RegSCR = 7 // scratch

	// RegCount is the number of register indices.
	RegCount = 8
)

// Line status bits.
const (
	LSRDataReady  byte = 0x01
	LSROverrun    byte = 0x02
	LSRParityErr  byte = 0x04
	LSRFramingErr byte = 0x08
	LSRBreak      byte = 0x10
	LSRTHRE       byte = 0x20 // transmit holding register empty
	LSRTEMT       byte = 0x40 // transmitter empty
)

// FIFO control bits.
const (
	FCREnable  byte = 0x01
	FCRClearRX byte = 0x02
	FCRClearTX byte = 0x04
)

// LCRDLAB selects the divisor latch on indices 0 and 1.
const LCRDLAB byte = 0x80

// DefaultRegShift is the register stride used by Orion5x UARTs,
// registers are 32-bit aligned (index << 2).
const DefaultRegShift = 2

// Window is a memory-mapped register block.
// Accesses cannot fail and are performed in program order.
type Window interface {
	Read32(off uint32) uint32
	Write32(off uint32, val uint32)
}

// Offset converts a register index to a byte offset with the given stride.
func Offset(reg int, shift uint) uint32 {
	return uint32(reg) << shift
}

// SharedWindow serializes accesses to a Window reachable from more than
// one component. The line owner claims it for a whole handshake.
type SharedWindow struct {
	win  Window
	lock sync.Mutex
}

// NewSharedWindow wraps a window.
func NewSharedWindow(win Window) *SharedWindow {
	return &SharedWindow{win: win}
}

// Raw returns the underlying window. Accesses through it are only safe
// while the window is claimed.
func (w *SharedWindow) Raw() Window {
	return w.win
}

// Read32 implements Window.
func (w *SharedWindow) Read32(off uint32) uint32 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.win.Read32(off)
}

// Write32 implements Window.
func (w *SharedWindow) Write32(off uint32, val uint32) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.win.Write32(off, val)
}

// Claim locks the window and returns the underlying window for exclusive
// use until release is called. Other users block in the meantime.
func (w *SharedWindow) Claim() (win Window, release func()) {
	w.lock.Lock()
	var once sync.Once
	return w.win, func() { once.Do(w.lock.Unlock) }
}
