// Package uart drives a 16550-compatible serial line through its register
// window by busy-wait polling.
package uart

// The line is used without interrupts: every receive is a bounded poll on
// the data-ready bit, every transmit spins on the holding-register-empty
// bit. The register window itself is abstracted by Window so the same line
// logic runs on physical MMIO, an emulated register set over a host tty,
// a remote window, or a simulation.
