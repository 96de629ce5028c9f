// Package tty emulates a 16550 register window on top of a host serial
// port, so the link can be driven through a USB-serial adapter.
package tty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	"github.com/robotalks/micon.go/pkg/uart"
)

// StandardBauds are the rates a host port can be opened at.
var StandardBauds = []int{
	1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600,
}

// NearestBaud snaps a computed rate to the closest standard rate.
func NearestBaud(rate int) int {
	best := StandardBauds[0]
	for _, b := range StandardBauds {
		if abs(b-rate) < abs(best-rate) {
			best = b
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// PortConfig derives the host port settings from a divisor and format.
func PortConfig(name string, tickRate uint32, divisor uint16, format uart.Format) *serial.Config {
	conf := &serial.Config{
		Name:        name,
		Size:        byte(format.DataBits()),
		ReadTimeout: pollTimeout,
	}
	if divisor > 0 {
		conf.Baud = NearestBaud(int(tickRate / (16 * uint32(divisor))))
	} else {
		conf.Baud = StandardBauds[0]
	}
	switch format.Parity() {
	case uart.ParityOdd:
		conf.Parity = serial.ParityOdd
	case uart.ParityEven:
		conf.Parity = serial.ParityEven
	case uart.ParityMark:
		conf.Parity = serial.ParityMark
	case uart.ParitySpace:
		conf.Parity = serial.ParitySpace
	default:
		conf.Parity = serial.ParityNone
	}
	if format.StopBits() == 2 {
		conf.StopBits = serial.Stop2
	} else {
		conf.StopBits = serial.Stop1
	}
	return conf
}

// Opener opens a host port.
type Opener func(*serial.Config) (io.ReadWriteCloser, error)

// OpenSerial opens a port with github.com/tarm/serial.
func OpenSerial(conf *serial.Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(conf)
}

// the reader wakes up at this interval to notice a close
const pollTimeout = 100 * time.Millisecond

// Window emulates the 16550 registers over a host port.
//
// LCR, DLL and DLM writes are latched; the port is (re)opened with the
// latched settings whenever DLAB is cleared. LSR reports data ready while
// received bytes are queued and the transmitter as always empty.
type Window struct {
	Name     string
	TickRate uint32
	Shift    uint
	Open     Opener

	regs [uart.RegCount]byte
	dll  byte
	dlm  byte

	port   io.ReadWriteCloser
	stopCh chan struct{}
	doneCh chan struct{}
	rxCh   chan byte
	lock   sync.Mutex

	err     error
	errLock sync.Mutex
}

// New creates a Window for the named port. The port is opened on the
// first line configuration.
func New(name string, tickRate uint32) *Window {
	return &Window{
		Name:     name,
		TickRate: tickRate,
		Shift:    uart.DefaultRegShift,
		Open:     OpenSerial,
		rxCh:     make(chan byte, 4096),
	}
}

// Err returns the last port error, including a failed read that stopped
// reception. It is cleared when the port is reopened.
func (w *Window) Err() error {
	w.errLock.Lock()
	defer w.errLock.Unlock()
	return w.err
}

// Read32 implements uart.Window.
func (w *Window) Read32(off uint32) uint32 {
	reg := int(off >> w.Shift)
	w.lock.Lock()
	defer w.lock.Unlock()
	dlab := w.regs[uart.RegLCR]&uart.LCRDLAB != 0
	switch reg {
	case uart.RegRX:
		if dlab {
			return uint32(w.dll)
		}
		select {
		case b := <-w.rxCh:
			return uint32(b)
		default:
			return 0
		}
	case uart.RegIER:
		if dlab {
			return uint32(w.dlm)
		}
	case uart.RegIIR:
		return 0x01
	case uart.RegLSR:
		lsr := uart.LSRTHRE | uart.LSRTEMT
		if len(w.rxCh) > 0 {
			lsr |= uart.LSRDataReady
		}
		return uint32(lsr)
	}
	if reg < uart.RegCount {
		return uint32(w.regs[reg])
	}
	return 0
}

// Write32 implements uart.Window.
func (w *Window) Write32(off uint32, val uint32) {
	reg, b := int(off>>w.Shift), byte(val)
	w.lock.Lock()
	defer w.lock.Unlock()
	dlab := w.regs[uart.RegLCR]&uart.LCRDLAB != 0
	switch reg {
	case uart.RegTX:
		if dlab {
			w.dll = b
			return
		}
		w.transmit(b)
	case uart.RegIER:
		if dlab {
			w.dlm = b
		} else {
			w.regs[reg] = b
		}
	case uart.RegFCR:
		if b&uart.FCRClearRX != 0 {
			w.drain()
		}
		w.regs[reg] = b
	case uart.RegLCR:
		w.regs[reg] = b
		if dlab && b&uart.LCRDLAB == 0 {
			w.reopen()
		}
	case uart.RegLSR, uart.RegMSR:
	default:
		if reg < uart.RegCount {
			w.regs[reg] = b
		}
	}
}

// Close closes the port.
func (w *Window) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.closePort()
}

func (w *Window) transmit(b byte) {
	if w.port == nil {
		w.setErr(errors.New("port not configured"))
		return
	}
	if _, err := w.port.Write([]byte{b}); err != nil {
		w.setErr(err)
	}
}

func (w *Window) drain() {
	for {
		select {
		case <-w.rxCh:
		default:
			return
		}
	}
}

func (w *Window) reopen() {
	w.closePort()
	divisor := uint16(w.dlm)<<8 | uint16(w.dll)
	conf := PortConfig(w.Name, w.TickRate, divisor, uart.Format(w.regs[uart.RegLCR]))
	port, err := w.Open(conf)
	if err != nil {
		w.setErr(err)
		return
	}
	glog.V(2).Infof("tty: %s opened at %d %v", w.Name, conf.Baud, uart.Format(w.regs[uart.RegLCR]))
	w.port = port
	w.clearErr()
	w.stopCh, w.doneCh = make(chan struct{}), make(chan struct{})
	go w.readLoop(port, w.stopCh, w.doneCh)
}

func (w *Window) closePort() error {
	if w.port == nil {
		return nil
	}
	close(w.stopCh)
	err := w.port.Close()
	<-w.doneCh
	w.port = nil
	return err
}

func (w *Window) readLoop(port io.Reader, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	buf := make([]byte, 64)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			select {
			case w.rxCh <- b:
			default:
				glog.Warningf("tty: %s receive overrun", w.Name)
			}
		}
		if err != nil && err != io.EOF && !os.IsTimeout(err) {
			select {
			case <-stopCh:
			default:
				w.setErr(fmt.Errorf("read: %w", err))
			}
			return
		}
	}
}

func (w *Window) setErr(err error) {
	w.errLock.Lock()
	defer w.errLock.Unlock()
	if w.err == nil {
		glog.Errorf("tty: %s: %v", w.Name, err)
	}
	w.err = err
}

func (w *Window) clearErr() {
	w.errLock.Lock()
	w.err = nil
	w.errLock.Unlock()
}
