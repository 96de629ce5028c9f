package sim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/micon.go/pkg/uart"
	"github.com/robotalks/micon.go/pkg/uart/sim"
)

var noSleep = uart.SleepFunc(func(time.Duration) {})

func TestUARTDivisorLatch(t *testing.T) {
	u := sim.NewUART(nil)
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))
	l.Configure(0x0162, uart.Format8E1)
	require.Equal(t, uint16(0x0162), u.Divisor())
	require.Equal(t, byte(0x1b), u.Reg(uart.RegLCR))
	require.Equal(t, byte(0x07), u.Reg(uart.RegFCR))
	require.Empty(t, u.Transmitted())
}

func TestUARTLoopback(t *testing.T) {
	u := sim.NewUART(sim.ReceiveFunc(func(b byte) []byte { return []byte{b} }))
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))
	l.Send([]byte("hi"))
	require.Equal(t, []byte("hi"), u.Transmitted())
	require.Equal(t, []byte("hi"), l.Recv(40))
}

func TestUARTClearRX(t *testing.T) {
	u := sim.NewUART(nil)
	u.Inject(1, 2, 3)
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))
	l.Configure(1, uart.Format8N1)
	require.Empty(t, l.Recv(40))
}

func TestMiconAck(t *testing.T) {
	m := sim.NewMicon()
	u := sim.NewUART(m)
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))

	l.Send([]byte{0x01, 0x35, 0x00, 0xca})
	require.Equal(t, []byte{0x01, 0x35, 0x00, 0xca}, l.Recv(40))
	l.Send([]byte{0x00, 0x0c, 0xf4})
	require.Equal(t, []byte{0x01, 0x0c, 0x00, 0xf3}, l.Recv(40))
	require.Equal(t, []byte{0x35, 0x0c}, m.Commands())
	require.Equal(t, []byte{0x00}, m.Frames()[0].Data)
}

func TestMiconBadChecksum(t *testing.T) {
	m := sim.NewMicon()
	u := sim.NewUART(m)
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))

	l.Send([]byte{0x00, 0x06, 0x00})
	require.Equal(t, []byte{0x01, 0x06, sim.StatusNak, 0x09}, l.Recv(40))
	require.Empty(t, m.Commands())
}

func TestMiconFaults(t *testing.T) {
	m := sim.NewMicon().Silence(1)
	u := sim.NewUART(m)
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))
	frame := []byte{0x00, 0x06, 0xfa}

	l.Send(frame)
	require.Empty(t, l.Recv(40))
	m.Corrupt(1)
	l.Send(frame)
	require.Equal(t, []byte{0x01, 0x06, 0x00, 0xfa}, l.Recv(40))
	m.Nak(1)
	l.Send(frame)
	require.Equal(t, []byte{0x01, 0x06, sim.StatusNak, 0x09}, l.Recv(40))
	l.Send(frame)
	require.Equal(t, []byte{0x01, 0x06, 0x00, 0xf9}, l.Recv(40))
	require.Equal(t, []byte{0x06, 0x06, 0x06}, m.Commands())
}

func TestMiconIdleResync(t *testing.T) {
	m := sim.NewMicon()
	u := sim.NewUART(m)
	l := uart.NewLine(u, 60000000, uart.WithClock(noSleep))

	// a truncated frame swallows idle bytes and gets rejected
	l.Send([]byte{0x01})
	l.Send([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	require.Len(t, l.Recv(40), 4)
	l.Send([]byte{0x00, 0x06, 0xfa})
	require.Equal(t, []byte{0x01, 0x06, 0x00, 0xf9}, l.Recv(40))
}
