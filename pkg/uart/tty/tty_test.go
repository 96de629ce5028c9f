package tty

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"

	"github.com/robotalks/micon.go/pkg/uart"
)

type fakePort struct {
	in  *io.PipeReader
	out bytes.Buffer
	mu  sync.Mutex
}

func (p *fakePort) Read(b []byte) (int, error) { return p.in.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *fakePort) Close() error { return p.in.Close() }

func (p *fakePort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.out.Bytes()...)
}

func newFakeWindow() (*Window, *[]*serial.Config, *[]*io.PipeWriter, *[]*fakePort) {
	var confs []*serial.Config
	var writers []*io.PipeWriter
	var ports []*fakePort
	w := New("/dev/ttyTEST", 166666667)
	w.Open = func(conf *serial.Config) (io.ReadWriteCloser, error) {
		r, pw := io.Pipe()
		p := &fakePort{in: r}
		confs = append(confs, conf)
		writers = append(writers, pw)
		ports = append(ports, p)
		return p, nil
	}
	return w, &confs, &writers, &ports
}

func waitDataReady(t *testing.T, line *uart.Line) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if line.ReadReg(uart.RegLSR)&uart.LSRDataReady != 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no data received")
}

func TestNearestBaud(t *testing.T) {
	require.Equal(t, 38400, NearestBaud(38437))
	require.Equal(t, 38400, NearestBaud(38265))
	require.Equal(t, 115200, NearestBaud(113636))
	require.Equal(t, 1200, NearestBaud(0))
	require.Equal(t, 921600, NearestBaud(3000000))
}

func TestPortConfig(t *testing.T) {
	conf := PortConfig("ttyS0", 166666667, 271, uart.Format8E1)
	require.Equal(t, "ttyS0", conf.Name)
	require.Equal(t, 38400, conf.Baud)
	require.Equal(t, byte(8), conf.Size)
	require.Equal(t, serial.ParityEven, conf.Parity)
	require.Equal(t, serial.Stop1, conf.StopBits)

	f, err := uart.ParseFormat("7O2")
	require.NoError(t, err)
	conf = PortConfig("ttyS0", 60000000, 98, f)
	require.Equal(t, 38400, conf.Baud)
	require.Equal(t, byte(7), conf.Size)
	require.Equal(t, serial.ParityOdd, conf.Parity)
	require.Equal(t, serial.Stop2, conf.StopBits)
}

func TestConfigureOpensPort(t *testing.T) {
	w, confs, writers, ports := newFakeWindow()
	defer w.Close()
	line := uart.NewLine(w, w.TickRate)

	line.Send([]byte{0x00})
	require.Error(t, w.Err())

	line.Configure(line.Divisor(38400), uart.Format8E1)
	require.NoError(t, w.Err())
	require.Len(t, *confs, 1)
	require.Equal(t, 38400, (*confs)[0].Baud)
	require.Equal(t, serial.ParityEven, (*confs)[0].Parity)

	line.Send([]byte{0x00, 0x06, 0xfa})
	require.Equal(t, []byte{0x00, 0x06, 0xfa}, (*ports)[0].written())

	go (*writers)[0].Write([]byte{0x01, 0x06, 0x00, 0xf9})
	waitDataReady(t, line)
	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for len(got) < 4 && time.Now().Before(deadline) {
		got = append(got, line.Recv(4-len(got))...)
	}
	require.Equal(t, []byte{0x01, 0x06, 0x00, 0xf9}, got)
}

func TestReconfigureReopens(t *testing.T) {
	w, confs, _, _ := newFakeWindow()
	line := uart.NewLine(w, w.TickRate)
	line.Configure(line.Divisor(38400), uart.Format8E1)
	line.Configure(line.Divisor(115200), uart.Format8N1)
	require.Len(t, *confs, 2)
	require.Equal(t, 115200, (*confs)[1].Baud)
	require.Equal(t, serial.ParityNone, (*confs)[1].Parity)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestClearRX(t *testing.T) {
	w, _, writers, _ := newFakeWindow()
	defer w.Close()
	line := uart.NewLine(w, w.TickRate)
	line.Configure(line.Divisor(38400), uart.Format8E1)
	go (*writers)[0].Write([]byte{0x55})
	waitDataReady(t, line)
	line.WriteReg(uart.RegFCR, uart.FCREnable|uart.FCRClearRX)
	require.Zero(t, line.ReadReg(uart.RegLSR)&uart.LSRDataReady)
}

func TestOpenError(t *testing.T) {
	w := New("/dev/ttyNONE", 166666667)
	w.Open = func(*serial.Config) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}
	line := uart.NewLine(w, w.TickRate)
	line.Configure(line.Divisor(38400), uart.Format8E1)
	require.EqualError(t, w.Err(), "no such device")
	require.NoError(t, w.Close())
}

func TestReadErrorLatched(t *testing.T) {
	w, _, writers, _ := newFakeWindow()
	defer w.Close()
	line := uart.NewLine(w, w.TickRate)
	line.Configure(line.Divisor(38400), uart.Format8E1)
	require.NoError(t, w.Err())

	(*writers)[0].CloseWithError(errors.New("device gone"))
	deadline := time.Now().Add(2 * time.Second)
	for w.Err() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Error(t, w.Err())
	require.Contains(t, w.Err().Error(), "device gone")

	// reconfiguring reopens the port and clears the error
	line.Configure(line.Divisor(38400), uart.Format8E1)
	require.NoError(t, w.Err())
}
