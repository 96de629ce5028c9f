// Package sh provides the interactive shell of miconctl.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/micon.go/pkg/board"
	"github.com/robotalks/micon.go/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
		&BoardsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open link.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Env == nil {
			c.Err(fmt.Errorf("link not open"))
			return
		}
		fn(c)
	}
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the link of the configured backend.
func (s *Shell) Open() error {
	e, err := s.Config.NewEnv()
	if err != nil {
		return err
	}
	s.Close()
	s.Env = e
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("%s(%s) > ", s.Config.Board, s.Config.Backend.Kind))
	}
	return nil
}

// Close closes the link.
func (s *Shell) Close() {
	if s.Env != nil {
		if err := s.Env.Close(); err != nil {
			glog.Warningf("close: %v", err)
		}
		s.Env = nil
		if s.Shell != nil {
			s.Shell.SetPrompt(closedPrompt)
		}
	}
}

// Print prints v as JSON in JSON mode, or its text otherwise.
func Print(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// ParseBytes parses bytes given as separate hex arguments ("00 06"),
// one hex string ("0006") or a mix, with optional 0x prefixes.
func ParseBytes(args []string) ([]byte, error) {
	var out []byte
	for _, arg := range args {
		for _, tok := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ':' }) {
			tok = strings.TrimPrefix(strings.ToLower(tok), "0x")
			if len(tok) == 0 || len(tok)%2 != 0 && len(tok) != 1 {
				return nil, fmt.Errorf("invalid hex %q", tok)
			}
			if len(tok) == 1 {
				tok = "0" + tok
			}
			for i := 0; i < len(tok); i += 2 {
				val, err := strconv.ParseUint(tok[i:i+2], 16, 8)
				if err != nil {
					return nil, fmt.Errorf("invalid hex %q", tok)
				}
				out = append(out, byte(val))
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("bytes required")
	}
	return out, nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(); err != nil {
			glog.Fatalf("open %s link failed: %v", s.Config.Backend.Kind, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Fatalln("command expected")
}

var (
	// OpenCmd opens the link.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[BACKEND [DEVICE|URL]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Backend.Kind = c.Args[0]
			}
			if len(c.Args) > 1 {
				s.Config.Backend.Device, s.Config.Backend.URL = c.Args[1], c.Args[1]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the link.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}

	// BoardsCmd lists board profiles.
	BoardsCmd = ishell.Cmd{
		Name: "boards",
		Help: "",
		Func: func(c *ishell.Context) {
			names := board.Names()
			var lines []string
			for _, name := range names {
				p, _ := board.Lookup(name)
				lines = append(lines, fmt.Sprintf("%-18s base=%#x size=%#x shift=%d tclk=%d",
					p.Name, p.Base, p.Size, p.RegShift, p.TickRate))
			}
			Print(c, names, strings.Join(lines, "\n"))
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := env.NewConfig()
	if err != nil {
		glog.Fatalf("config: %v", err)
	}
	New(conf).WithAutoOpen(conf.Backend.Kind == env.BackendSim).Run(flag.Args()...)
}
