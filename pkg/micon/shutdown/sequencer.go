// Package shutdown runs the power-off handshake with the microcontroller
// when the system is going down.
package shutdown

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/uart"
)

// Baud is the line speed of the handshake.
const Baud = 38400

// Format is the line format of the handshake.
const Format = uart.Format8E1

// Command is a named command payload.
type Command struct {
	Name    string
	Payload []byte
}

// The power-off commands, sent in this order.
var (
	WatchdogKill = Command{Name: "watchdog-kill", Payload: []byte{0x01, 0x35, 0x00}}
	ShutdownWait = Command{Name: "shutdown-wait", Payload: []byte{0x00, 0x0c}}
	PowerOff     = Command{Name: "power-off", Payload: []byte{0x00, 0x06}}
)

// Commands returns the power-off sequence.
func Commands() []Command {
	return []Command{WatchdogKill, ShutdownWait, PowerOff}
}

// Line is the part of the line handle the sequencer reprograms.
type Line interface {
	TickRate() uint32
	Configure(divisor uint16, format uart.Format)
}

// CommandSender runs one command. micon.Sender implements it.
type CommandSender interface {
	Send(payload []byte) micon.Result
}

// Reporter receives the report once the sequence completed.
type Reporter interface {
	Report(*Report) error
}

// ReportFunc is func form of Reporter.
type ReportFunc func(*Report) error

// Report implements Reporter.
func (f ReportFunc) Report(r *Report) error {
	return f(r)
}

// State is the sequencer state.
type State int

// States.
const (
	StateIdle State = iota
	StateReconfiguring
	StateSendingCommand
	StateDone
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateReconfiguring:  "reconfiguring",
	StateSendingCommand: "sending-command",
	StateDone:           "done",
}

// String implements fmt.Stringer.
func (s State) String() string {
	return stateNames[s]
}

// Sequencer reprograms the line and sends the power-off commands once.
type Sequencer struct {
	Baud      int
	Format    uart.Format
	Commands  []Command
	Reporters []Reporter

	// Exclusive, when set, is called before the line is reprogrammed and
	// the release it returns after the last command.
	Exclusive func() (release func())

	line   Line
	sender CommandSender

	once    sync.Once
	lock    sync.Mutex
	state   State
	current int
	report  *Report
}

// New creates a Sequencer with the standard baud, format and commands.
func New(line Line, sender CommandSender) *Sequencer {
	return &Sequencer{
		Baud:     Baud,
		Format:   Format,
		Commands: Commands(),
		line:     line,
		sender:   sender,
	}
}

// AddReporters registers reporters.
func (s *Sequencer) AddReporters(reporters ...Reporter) *Sequencer {
	s.Reporters = append(s.Reporters, reporters...)
	return s
}

// State returns the current state and, while sending, the index of the
// command in flight.
func (s *Sequencer) State() (State, int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state, s.current
}

// LastReport returns the report of the completed sequence, or nil.
func (s *Sequencer) LastReport() *Report {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.report
}

// Notify is the trigger interface. Reasons other than down and halt are
// not handled. The sequence runs at most once, later accepted
// notifications are acknowledged without touching the line. arg is not
// interpreted.
func (s *Sequencer) Notify(reason Reason, arg interface{}) Disposition {
	if !reason.Accepted() {
		glog.V(2).Infof("shutdown: ignore %v", reason)
		return NotHandled
	}
	ran := false
	s.once.Do(func() {
		ran = true
		s.Run(reason)
	})
	if !ran {
		glog.Warningf("shutdown: %v notified after the sequence already ran", reason)
	}
	return Handled
}

// Run reprograms the line and sends every command in order, whatever the
// outcome of the previous one. Failures are only reported.
func (s *Sequencer) Run(reason Reason) *Report {
	glog.Infof("shutdown(%v): triggering power-off...", reason)
	r := &Report{Reason: reason, Start: time.Now()}

	if s.Exclusive != nil {
		release := s.Exclusive()
		defer release()
	}
	s.setState(StateReconfiguring, 0)
	r.Divisor = uart.Divisor(s.line.TickRate(), s.Baud)
	r.Format = s.Format
	s.line.Configure(r.Divisor, r.Format)

	for n, cmd := range s.Commands {
		s.setState(StateSendingCommand, n)
		res := s.sender.Send(cmd.Payload)
		if res.Err != nil {
			glog.Warningf("shutdown: %s failed: %v", cmd.Name, res.Err)
		} else {
			glog.V(2).Infof("shutdown: %s acknowledged", cmd.Name)
		}
		r.Results = append(r.Results, CommandResult{Command: cmd, Result: res})
	}
	r.End = time.Now()

	s.lock.Lock()
	s.state, s.report = StateDone, r
	s.lock.Unlock()

	for _, rep := range s.Reporters {
		if err := rep.Report(r); err != nil {
			glog.Warningf("shutdown: report error: %v", err)
		}
	}
	return r
}

func (s *Sequencer) setState(state State, current int) {
	s.lock.Lock()
	s.state, s.current = state, current
	s.lock.Unlock()
}
