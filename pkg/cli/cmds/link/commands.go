// Package link adds the link commands to the shell.
package link

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/micon.go/pkg/cli/sh"
	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/micon/shutdown"
	"github.com/robotalks/micon.go/pkg/notify/report"
	"github.com/robotalks/micon.go/pkg/uart"
)

var regNames = []string{"RBR/DLL", "IER/DLM", "IIR", "LCR", "MCR", "LSR", "MSR", "SCR"}

// FormatAttempts renders the attempts of a result, one per line.
func FormatAttempts(res micon.Result) string {
	var lines []string
	for _, a := range res.Attempts {
		line := fmt.Sprintf("#%d %s [% x]", a.N, a.Outcome, a.Response)
		if a.Drained != nil {
			line += fmt.Sprintf(" drained [% x]", a.Drained)
		}
		lines = append(lines, line)
	}
	if res.Err != nil {
		lines = append(lines, res.Err.Error())
	} else {
		lines = append(lines, "OK")
	}
	return strings.Join(lines, "\n")
}

// DumpRegs reads every register. Reading RBR consumes a received byte,
// so the receive buffer is skipped unless DLAB is set.
func DumpRegs(line *uart.Line) []byte {
	regs := make([]byte, uart.RegCount)
	for reg := 1; reg < uart.RegCount; reg++ {
		regs[reg] = line.ReadReg(reg)
	}
	return regs
}

func parseBaud(args []string) (int, error) {
	if len(args) == 0 {
		return shutdown.Baud, nil
	}
	baud, err := strconv.Atoi(args[0])
	if err != nil || baud <= 0 {
		return 0, fmt.Errorf("invalid BAUD %q", args[0])
	}
	return baud, nil
}

var (
	// ChecksumCmd frames a payload.
	ChecksumCmd = ishell.Cmd{
		Name:    "checksum",
		Aliases: []string{"cs"},
		Help:    "BYTES...",
		Func: func(c *ishell.Context) {
			payload, err := sh.ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			f := micon.NewFrame(payload)
			sh.Print(c, []byte(f), f.String())
		},
	}

	// AckCmd prints the acknowledgement expected for a payload.
	AckCmd = ishell.Cmd{
		Name: "ack",
		Help: "BYTES...",
		Func: func(c *ishell.Context) {
			payload, err := sh.ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if len(payload) < 2 {
				c.Err(micon.ErrShortPayload)
				return
			}
			ack := ExpectedAckFrame(payload)
			sh.Print(c, []byte(ack), ack.String())
		},
	}

	// DivisorCmd computes a divisor.
	DivisorCmd = ishell.Cmd{
		Name:    "divisor",
		Aliases: []string{"div"},
		Help:    "[BAUD [TICK-RATE]]",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			baud, err := parseBaud(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			p, err := s.Config.Profile()
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) > 1 {
				tick, err := strconv.ParseUint(c.Args[1], 0, 32)
				if err != nil {
					c.Err(fmt.Errorf("invalid TICK-RATE %q", c.Args[1]))
					return
				}
				p.TickRate = uint32(tick)
			}
			div := uart.Divisor(p.TickRate, baud)
			sh.Print(c, div, fmt.Sprintf("%d (tick %d Hz, %d baud)", div, p.TickRate, baud))
		},
	}

	// ConfigureCmd reprograms the line.
	ConfigureCmd = ishell.Cmd{
		Name:    "configure",
		Aliases: []string{"cfg"},
		Help:    "[BAUD [FORMAT]]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			line := sh.ShellFrom(c).Env.Line
			baud, err := parseBaud(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			format := shutdown.Format
			if len(c.Args) > 1 {
				if format, err = uart.ParseFormat(strings.ToUpper(c.Args[1])); err != nil {
					c.Err(err)
					return
				}
			}
			line.Configure(line.Divisor(baud), format)
			div, _, _ := line.Config()
			sh.Print(c, div, fmt.Sprintf("divisor %d %v", div, format))
		}),
	}

	// SendCmd sends a command payload.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "BYTES...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			payload, err := sh.ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			res := sh.ShellFrom(c).Env.Sender.Send(payload)
			sh.Print(c, res.Attempts, FormatAttempts(res))
		}),
	}

	// RegsCmd dumps the UART registers.
	RegsCmd = ishell.Cmd{
		Name: "regs",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			regs := DumpRegs(sh.ShellFrom(c).Env.Line)
			var lines []string
			for reg := 1; reg < uart.RegCount; reg++ {
				lines = append(lines, fmt.Sprintf("%-8s %02x", regNames[reg], regs[reg]))
			}
			sh.Print(c, regs, strings.Join(lines, "\n"))
		}),
	}

	// PowerOffCmd runs the power-off sequence.
	PowerOffCmd = ishell.Cmd{
		Name:    "poweroff",
		Aliases: []string{"off"},
		Help:    "[down|halt]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			reason := shutdown.ReasonHalt
			if len(c.Args) > 0 {
				var err error
				if reason, err = shutdown.ParseReason(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			if !reason.Accepted() {
				c.Err(fmt.Errorf("%v is not handled", reason))
				return
			}
			r := s.Env.Sequencer.Run(reason)
			if s.OutputJSON {
				out, err := report.EncodeJSON(s.Config.Node(), r)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(out)
				return
			}
			c.Println(r.String())
			if err := r.Err(); err != nil {
				c.Err(err)
			}
		}),
	}
)

// ExpectedAckFrame returns the full acknowledgement frame for payload.
func ExpectedAckFrame(payload []byte) micon.Frame {
	ack := micon.ExpectedAck(payload)
	return micon.NewFrame(ack[:])
}

func init() {
	sh.AddCmds(
		&ChecksumCmd,
		&AckCmd,
		&DivisorCmd,
		&ConfigureCmd,
		&SendCmd,
		&RegsCmd,
		&PowerOffCmd,
	)
}
