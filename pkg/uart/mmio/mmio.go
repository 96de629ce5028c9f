// +build linux

// Package mmio maps a physical register window through /dev/mem.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// DevMem is the physical memory device.
const DevMem = "/dev/mem"

// Window is a mapped register window. It implements uart.Window.
type Window struct {
	base uint64
	size int
	file *os.File
	mem  []byte
	regs []byte
}

// span returns the page aligned start and length covering [base, base+size).
func span(base uint64, size, pageSize int) (start uint64, length int) {
	mask := uint64(pageSize - 1)
	start = base &^ mask
	end := (base + uint64(size) + mask) &^ mask
	return start, int(end - start)
}

// Open maps size bytes of physical memory at base.
func Open(base uint64, size int) (*Window, error) {
	return OpenFile(DevMem, base, size)
}

// OpenFile maps a window from a memory device file.
func OpenFile(name string, base uint64, size int) (*Window, error) {
	if size <= 0 || size&3 != 0 {
		return nil, fmt.Errorf("invalid window size %#x", size)
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	start, length := span(base, size, os.Getpagesize())
	mem, err := unix.Mmap(int(f.Fd()), int64(start), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %#x+%#x: %w", start, length, err)
	}
	off := int(base - start)
	glog.V(4).Infof("mmio: mapped %#x+%#x at page %#x", base, size, start)
	return &Window{
		base: base,
		size: size,
		file: f,
		mem:  mem,
		regs: mem[off : off+size],
	}, nil
}

// Base returns the physical address of the window.
func (w *Window) Base() uint64 {
	return w.base
}

// Read32 implements uart.Window.
func (w *Window) Read32(off uint32) uint32 {
	return atomic.LoadUint32(w.reg(off))
}

// Write32 implements uart.Window.
func (w *Window) Write32(off uint32, val uint32) {
	atomic.StoreUint32(w.reg(off), val)
}

func (w *Window) reg(off uint32) *uint32 {
	if int(off)+4 > w.size || off&3 != 0 {
		panic(fmt.Sprintf("mmio: register offset %#x outside window of %#x", off, w.size))
	}
	return (*uint32)(unsafe.Pointer(&w.regs[off]))
}

// Close unmaps the window.
func (w *Window) Close() error {
	err := unix.Munmap(w.mem)
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}
