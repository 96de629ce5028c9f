package wsbridge

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/uart"
	"github.com/robotalks/micon.go/pkg/uart/sim"
)

func TestRequestCodec(t *testing.T) {
	pkt := EncodeRequest(OpWrite, 0x14, 0x1b)
	require.Equal(t, []byte{'w', 0, 0, 0, 0x14, 0, 0, 0, 0x1b}, pkt)
	op, off, val, err := DecodeRequest(pkt)
	require.NoError(t, err)
	require.Equal(t, OpWrite, op)
	require.Equal(t, uint32(0x14), off)
	require.Equal(t, uint32(0x1b), val)

	_, _, _, err = DecodeRequest(pkt[:4])
	require.Error(t, err)
	pkt[0] = 'x'
	_, _, _, err = DecodeRequest(pkt)
	require.Error(t, err)
}

func TestBridgeSendsCommand(t *testing.T) {
	m := sim.NewMicon()
	u := sim.NewUART(m)
	srv := httptest.NewServer(Handler(u, uart.DefaultRegShift))
	defer srv.Close()

	c, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	line := uart.NewLine(c, 166666667)
	line.Configure(line.Divisor(38400), uart.Format8E1)
	require.Equal(t, uint16(271), u.Divisor())

	require.NoError(t, micon.NewSender(line, nil).SendCommand([]byte{0x00, 0x06}))
	require.Equal(t, []byte{0x06}, m.Commands())
	require.NoError(t, c.Err())
}

func TestClientLatchesError(t *testing.T) {
	srv := httptest.NewServer(Handler(sim.NewUART(nil), uart.DefaultRegShift))
	c, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	srv.Close()
	require.Zero(t, c.Read32(uart.Offset(uart.RegLSR, uart.DefaultRegShift)))
	require.Equal(t, ErrClosed, c.Err())
}

// boundedWindow panics outside its block like a mapped window does.
type boundedWindow struct {
	uart.Window
	size  uint32
	calls int32
}

func (w *boundedWindow) check(off uint32) {
	atomic.AddInt32(&w.calls, 1)
	if off+4 > w.size || off&3 != 0 {
		panic(fmt.Sprintf("register offset %#x outside window of %#x", off, w.size))
	}
}

func (w *boundedWindow) Read32(off uint32) uint32 {
	w.check(off)
	return w.Window.Read32(off)
}

func (w *boundedWindow) Write32(off uint32, val uint32) {
	w.check(off)
	w.Window.Write32(off, val)
}

func TestOutOfRangeOffsetRejected(t *testing.T) {
	win := &boundedWindow{Window: sim.NewUART(nil), size: 0x100}
	shared := uart.NewSharedWindow(win)
	srv := httptest.NewServer(Handler(shared, uart.DefaultRegShift))
	defer srv.Close()

	c, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	c.Write32(0x1000, 1)
	require.True(t, errors.Is(c.Err(), ErrRejected))
	require.Zero(t, atomic.LoadInt32(&win.calls))

	claimed := make(chan func(), 1)
	go func() {
		_, release := shared.Claim()
		claimed <- release
	}()
	select {
	case release := <-claimed:
		release()
	case <-time.After(time.Second):
		t.Fatal("window left locked")
	}
}

func TestUnalignedOffsetRejected(t *testing.T) {
	win := &boundedWindow{Window: sim.NewUART(nil), size: 0x100}
	srv := httptest.NewServer(Handler(win, uart.DefaultRegShift))
	defer srv.Close()

	c, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), srv.URL)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, uint32(uart.LSRTHRE|uart.LSRTEMT), c.Read32(uart.Offset(uart.RegLSR, uart.DefaultRegShift)))
	require.NoError(t, c.Err())
	require.Zero(t, c.Read32(0x3))
	require.True(t, errors.Is(c.Err(), ErrRejected))
	require.Equal(t, int32(1), atomic.LoadInt32(&win.calls))
}
