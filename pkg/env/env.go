package env

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/golang/glog"

	fx "github.com/robotalks/micon.go/pkg/framework"
	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/micon/shutdown"
	"github.com/robotalks/micon.go/pkg/notify/mqtt"
	"github.com/robotalks/micon.go/pkg/uart"
	"github.com/robotalks/micon.go/pkg/uart/mmio"
	"github.com/robotalks/micon.go/pkg/uart/sim"
	"github.com/robotalks/micon.go/pkg/uart/tty"
	"github.com/robotalks/micon.go/pkg/uart/wsbridge"
)

// BridgePath is where the websocket bridge is served.
const BridgePath = "/uart"

// Env is the link built from a Config.
type Env struct {
	Config    *Config
	Shared    *uart.SharedWindow
	Line      *uart.Line
	Sender    *micon.Sender
	Sequencer *shutdown.Sequencer
	// Power is nil without a broker URL.
	Power     *mqtt.Power

	closer io.Closer
}

// OpenWindow opens the register window of the configured backend.
// The returned closer releases it.
func (c *Config) OpenWindow() (uart.Window, io.Closer, error) {
	p, err := c.Profile()
	if err != nil {
		return nil, nil, err
	}
	switch c.Backend.Kind {
	case BackendMMIO:
		w, err := mmio.Open(p.Base, p.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("map %#x: %w", p.Base, err)
		}
		return w, w, nil
	case BackendTTY:
		w := tty.New(c.Backend.Device, p.TickRate)
		w.Shift = p.RegShift
		return w, w, nil
	case BackendWS:
		w, err := wsbridge.Dial(c.Backend.URL, "http://localhost/")
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", c.Backend.URL, err)
		}
		return w, w, nil
	case BackendSim:
		u := sim.NewUART(sim.NewMicon())
		u.Shift = p.RegShift
		return u, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", c.Backend.Kind)
}

// NewEnvWith builds the link on an already opened window.
func (c *Config) NewEnvWith(win uart.Window) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, _ := c.Profile()
	e := &Env{Config: c, Shared: uart.NewSharedWindow(win), closer: nopCloser{}}
	opts := append(c.LineOptions(), uart.WithRegShift(p.RegShift))
	e.Line = uart.NewLine(win, p.TickRate, opts...)
	e.Sender = micon.NewSender(e.Line, e.Line.Clock())
	e.Sender.Policy = c.SenderPolicy()
	e.Sequencer = shutdown.New(e.Line, e.Sender)
	e.Sequencer.Exclusive = func() func() {
		_, release := e.Shared.Claim()
		return release
	}
	if c.MQTT.URL != "" {
		power, err := mqtt.NewPower(c.MQTT.URL, c.Node(), e.Sequencer)
		if err != nil {
			return nil, err
		}
		e.Power = power
		e.Sequencer.AddReporters(power)
	}
	return e, nil
}

// NewEnv opens the window and builds the link.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	win, closer, err := c.OpenWindow()
	if err != nil {
		return nil, err
	}
	e, err := c.NewEnvWith(win)
	if err != nil {
		closer.Close()
		return nil, err
	}
	e.closer = closer
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		glog.Fatalf("setup: %v", err)
	}
	return e
}

// Close releases the window.
func (e *Env) Close() error {
	return e.closer.Close()
}

// Runners returns the background runners of the env: the MQTT trigger and
// the websocket bridge, when configured.
func (e *Env) Runners() []fx.Runnable {
	var runners []fx.Runnable
	if e.Power != nil {
		runners = append(runners, e.Power)
	}
	if addr := e.Config.Bridge.Listen; addr != "" {
		runners = append(runners, fx.NamedRun("bridge:"+addr, fx.RunFunc(func(ctx context.Context) error {
			return e.ServeBridge(ctx, addr)
		})))
	}
	return runners
}

// ServeBridge serves the shared window over websocket until ctx is done.
func (e *Env) ServeBridge(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	mux := http.NewServeMux()
	p, err := e.Config.Profile()
	if err != nil {
		ln.Close()
		return err
	}
	mux.Handle(BridgePath, wsbridge.Handler(e.Shared, p.RegShift))
	server := &http.Server{Handler: mux}
	glog.Infof("bridge: serving on %s%s", ln.Addr(), BridgePath)
	err = fx.RunWithContextCloser(ctx, server, func() error {
		return server.Serve(ln)
	})
	if err == http.ErrServerClosed || err == context.Canceled {
		return nil
	}
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
