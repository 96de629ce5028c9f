// +build !linux

package mmio

import "errors"

// DevMem is the physical memory device.
const DevMem = "/dev/mem"

// ErrUnsupported is returned on platforms without /dev/mem mapping.
var ErrUnsupported = errors.New("mmio: unsupported platform")

// Window is a mapped register window.
type Window struct{}

// Open is not supported on this platform.
func Open(base uint64, size int) (*Window, error) {
	return nil, ErrUnsupported
}

// OpenFile is not supported on this platform.
func OpenFile(name string, base uint64, size int) (*Window, error) {
	return nil, ErrUnsupported
}

// Base returns 0.
func (w *Window) Base() uint64 { return 0 }

// Read32 implements uart.Window.
func (w *Window) Read32(off uint32) uint32 { return 0 }

// Write32 implements uart.Window.
func (w *Window) Write32(off uint32, val uint32) {}

// Close implements io.Closer.
func (w *Window) Close() error { return nil }
