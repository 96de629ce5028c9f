package uart

import (
	"fmt"
	"strconv"
)

// Format is the line-control register pattern fixing data bits, parity
// and stop bits. It never carries the DLAB bit.
type Format byte

// Parity modes.
type Parity byte

const (
	ParityNone  Parity = 'N'
	ParityOdd   Parity = 'O'
	ParityEven  Parity = 'E'
	ParityMark  Parity = 'M'
	ParitySpace Parity = 'S'
)

const (
	lcrWordLenMask  byte = 0x03
	lcrStopBits     byte = 0x04
	lcrParityEnable byte = 0x08
	lcrEvenParity   byte = 0x10
	lcrStickParity  byte = 0x20
	lcrBreak        byte = 0x40
)

// Format8E1 is 8 data bits, even parity, 1 stop bit (LCR 0x1b).
const Format8E1 Format = Format(0x03 | lcrParityEnable | lcrEvenParity)

// Format8N1 is 8 data bits, no parity, 1 stop bit.
const Format8N1 Format = Format(0x03)

// NewFormat builds a Format. dataBits must be 5..8, stopBits 1 or 2.
func NewFormat(dataBits int, parity Parity, stopBits int) (Format, error) {
	if dataBits < 5 || dataBits > 8 {
		return 0, fmt.Errorf("invalid data bits %d", dataBits)
	}
	f := byte(dataBits - 5)
	switch stopBits {
	case 1:
	case 2:
		f |= lcrStopBits
	default:
		return 0, fmt.Errorf("invalid stop bits %d", stopBits)
	}
	switch parity {
	case ParityNone:
	case ParityOdd:
		f |= lcrParityEnable
	case ParityEven:
		f |= lcrParityEnable | lcrEvenParity
	case ParityMark:
		f |= lcrParityEnable | lcrStickParity
	case ParitySpace:
		f |= lcrParityEnable | lcrEvenParity | lcrStickParity
	default:
		return 0, fmt.Errorf("invalid parity %q", byte(parity))
	}
	return Format(f), nil
}

// ParseFormat parses the short form like "8E1".
func ParseFormat(s string) (Format, error) {
	if len(s) != 3 {
		return 0, fmt.Errorf("invalid line format %q", s)
	}
	bits, err := strconv.Atoi(s[:1])
	if err != nil {
		return 0, fmt.Errorf("invalid line format %q", s)
	}
	stop, err := strconv.Atoi(s[2:])
	if err != nil {
		return 0, fmt.Errorf("invalid line format %q", s)
	}
	return NewFormat(bits, Parity(s[1]), stop)
}

// DataBits returns the number of data bits.
func (f Format) DataBits() int {
	return int(byte(f)&lcrWordLenMask) + 5
}

// StopBits returns the number of stop bits (1 or 2).
func (f Format) StopBits() int {
	if byte(f)&lcrStopBits != 0 {
		return 2
	}
	return 1
}

// Parity returns the parity mode.
func (f Format) Parity() Parity {
	b := byte(f)
	if b&lcrParityEnable == 0 {
		return ParityNone
	}
	switch b & (lcrEvenParity | lcrStickParity) {
	case 0:
		return ParityOdd
	case lcrEvenParity:
		return ParityEven
	case lcrStickParity:
		return ParityMark
	default:
		return ParitySpace
	}
}

// String returns the short form, e.g. "8E1".
func (f Format) String() string {
	return fmt.Sprintf("%d%c%d", f.DataBits(), byte(f.Parity()), f.StopBits())
}
