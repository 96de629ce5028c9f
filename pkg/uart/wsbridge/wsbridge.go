// Package wsbridge exposes a register window over a websocket so a
// sequencer on another host can drive the UART remotely.
//
// Every request is one binary message: op, offset and value, the last
// two as big-endian uint32. Every request gets a reply of a status byte
// followed by the big-endian value.
package wsbridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/micon.go/pkg/uart"
)

// Ops.
const (
	OpRead  byte = 'r'
	OpWrite byte = 'w'
)

const (
	requestLen = 9
	replyLen   = 5
)

// Reply status.
const (
	StatusOK       byte = 0
	StatusRejected byte = 1
)

var (
	// ErrClosed is latched when the connection is gone.
	ErrClosed = errors.New("bridge closed")
	// ErrRejected is latched when the bridge refused an access.
	ErrRejected = errors.New("access rejected by bridge")
)

// Conn implements packet read/write on a websocket connection.
type Conn websocket.Conn

// ReadPacket reads one binary message.
func (c *Conn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &pkt)
	return
}

// WritePacket writes one binary message.
func (c *Conn) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(c), pkt)
}

// EncodeRequest encodes one register access.
func EncodeRequest(op byte, off, val uint32) []byte {
	pkt := make([]byte, requestLen)
	pkt[0] = op
	binary.BigEndian.PutUint32(pkt[1:], off)
	binary.BigEndian.PutUint32(pkt[5:], val)
	return pkt
}

// DecodeRequest decodes one register access.
func DecodeRequest(pkt []byte) (op byte, off, val uint32, err error) {
	if len(pkt) != requestLen {
		return 0, 0, 0, fmt.Errorf("invalid request length %d", len(pkt))
	}
	op = pkt[0]
	if op != OpRead && op != OpWrite {
		return 0, 0, 0, fmt.Errorf("invalid op %q", op)
	}
	return op, binary.BigEndian.Uint32(pkt[1:]), binary.BigEndian.Uint32(pkt[5:]), nil
}

// Handler serves register accesses against win, a register block with the
// given stride. Accesses from one connection are applied in order.
// Offsets outside the block get StatusRejected and never reach win.
func Handler(win uart.Window, shift uint) websocket.Handler {
	limit := uart.Offset(uart.RegCount, shift)
	return func(ws *websocket.Conn) {
		defer ws.Close()
		conn := (*Conn)(ws)
		glog.Infof("wsbridge: %s connected", ws.Request().RemoteAddr)
		for {
			pkt, err := conn.ReadPacket()
			if err != nil {
				glog.V(2).Infof("wsbridge: %s disconnected: %v", ws.Request().RemoteAddr, err)
				return
			}
			op, off, val, err := DecodeRequest(pkt)
			if err != nil {
				glog.Errorf("wsbridge: %s: %v", ws.Request().RemoteAddr, err)
				return
			}
			reply := make([]byte, replyLen)
			switch {
			case off >= limit || off&(uart.Offset(1, shift)-1) != 0:
				glog.Warningf("wsbridge: %s: offset %#x rejected", ws.Request().RemoteAddr, off)
				reply[0] = StatusRejected
			case op == OpRead:
				binary.BigEndian.PutUint32(reply[1:], win.Read32(off))
			default:
				win.Write32(off, val)
			}
			if err = conn.WritePacket(reply); err != nil {
				glog.Errorf("wsbridge: %s: %v", ws.Request().RemoteAddr, err)
				return
			}
		}
	}
}

// Client is a remote register window.
// Once an access fails the error is latched and reads return 0.
type Client struct {
	conn *Conn
	err  error
	lock sync.Mutex
}

// Dial connects to a bridge.
func Dial(url, origin string) (*Client, error) {
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return &Client{conn: (*Conn)(ws)}, nil
}

// Err returns the latched error.
func (c *Client) Err() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.err
}

// Read32 implements uart.Window.
func (c *Client) Read32(off uint32) uint32 {
	return c.access(OpRead, off, 0)
}

// Write32 implements uart.Window.
func (c *Client) Write32(off uint32, val uint32) {
	c.access(OpWrite, off, val)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.err == nil {
		c.err = ErrClosed
	}
	return (*websocket.Conn)(c.conn).Close()
}

func (c *Client) access(op byte, off, val uint32) uint32 {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.err != nil {
		return 0
	}
	if err := c.conn.WritePacket(EncodeRequest(op, off, val)); err != nil {
		return c.fail(err)
	}
	reply, err := c.conn.ReadPacket()
	if err != nil {
		return c.fail(err)
	}
	if len(reply) != replyLen {
		return c.fail(fmt.Errorf("invalid reply length %d", len(reply)))
	}
	if reply[0] != StatusOK {
		return c.fail(fmt.Errorf("%w: offset %#x", ErrRejected, off))
	}
	return binary.BigEndian.Uint32(reply[1:])
}

func (c *Client) fail(err error) uint32 {
	glog.Errorf("wsbridge: %v", err)
	c.err = err
	return 0
}
