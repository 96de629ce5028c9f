// Package env loads the configuration and builds the link from it.
package env

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/micon.go/pkg/board"
	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/uart"
)

// Backend kinds.
const (
	BackendMMIO = "mmio"
	BackendTTY  = "tty"
	BackendWS   = "ws"
	BackendSim  = "sim"
)

// Config provides the options to set up the link.
// Zero values of the window parameters are taken from the board profile.
type Config struct {
	Board    string  `yaml:"board"`
	TickRate uint32  `yaml:"tick_rate"`
	RegShift *uint   `yaml:"reg_shift"`
	Base     uint64  `yaml:"base"`
	Size     int     `yaml:"size"`
	Backend  Backend `yaml:"backend"`
	MQTT     MQTT    `yaml:"mqtt"`
	Bridge   Bridge  `yaml:"bridge"`
	Policy   Policy  `yaml:"policy"`
}

// Backend selects the register window.
type Backend struct {
	Kind   string `yaml:"kind"`
	// Device is the host serial port of the tty backend.
	Device string `yaml:"device"`
	// URL is the bridge of the ws backend, e.g. ws://nas:8090/uart
	URL    string `yaml:"url"`
}

// MQTT configures the trigger and report topics.
type MQTT struct {
	// URL specifies the broker, e.g. mqtt://host:port/topic-prefix/
	URL    string `yaml:"url"`
	NodeID string `yaml:"node_id"`
}

// Bridge configures serving the window over websocket.
type Bridge struct {
	Listen string `yaml:"listen"`
}

// Policy overrides link timing. Zero keeps the default.
type Policy struct {
	Attempts          int `yaml:"attempts"`
	ResponseCapacity  int `yaml:"response_capacity"`
	FlushSettleMs     int `yaml:"flush_settle_ms"`
	CommandIntervalMs int `yaml:"command_interval_ms"`
	ReadPolls         int `yaml:"read_polls"`
	PollIntervalMs    int `yaml:"poll_interval_ms"`
}

var (
	defaultConfig = Config{
		Board:   "kurobox-pro",
		Backend: Backend{Kind: BackendMMIO},
	}
	configFile string
)

func init() {
	if val := os.Getenv("MICON_BOARD"); val != "" {
		defaultConfig.Board = val
	}
	if val := os.Getenv("MICON_BACKEND"); val != "" {
		defaultConfig.Backend.Kind = val
	}
	if val := os.Getenv("MICON_DEVICE"); val != "" {
		defaultConfig.Backend.Device = val
	}
	if val := os.Getenv("MICON_MQTT_URL"); val != "" {
		defaultConfig.MQTT.URL = val
	}
	if val := os.Getenv("MICON_NODE_ID"); val != "" {
		defaultConfig.MQTT.NodeID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "YAML config file")
	flag.StringVar(&defaultConfig.Board, "board", defaultConfig.Board, "Board profile")
	flag.StringVar(&defaultConfig.Backend.Kind, "backend", defaultConfig.Backend.Kind, "Register backend: mmio, tty, ws, sim")
	flag.StringVar(&defaultConfig.Backend.Device, "device", defaultConfig.Backend.Device, "Serial device of the tty backend")
	flag.StringVar(&defaultConfig.Backend.URL, "bridge-url", defaultConfig.Backend.URL, "Bridge URL of the ws backend")
	flag.StringVar(&defaultConfig.MQTT.URL, "mqtt", defaultConfig.MQTT.URL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.MQTT.NodeID, "node", defaultConfig.MQTT.NodeID, "Node ID used in MQTT topics")
	flag.StringVar(&defaultConfig.Bridge.Listen, "bridge-listen", defaultConfig.Bridge.Listen, "Serve the register window over websocket on this address")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config from the defaults and the config file given
// on the command line, if any.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	return &conf, nil
}

// LoadFile merges a YAML file over the config.
func (c *Config) LoadFile(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := c.Load(data); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

// Load merges YAML over the config. Keys absent from data are kept.
func (c *Config) Load(data []byte) error {
	return yaml.Unmarshal(data, c)
}

// Profile resolves the board profile with the config overrides applied.
func (c *Config) Profile() (board.Profile, error) {
	p := board.Profile{Name: c.Board, RegShift: uart.DefaultRegShift}
	if c.Board != "" {
		var err error
		if p, err = board.Lookup(c.Board); err != nil {
			return p, err
		}
	}
	if c.TickRate != 0 {
		p.TickRate = c.TickRate
	}
	if c.RegShift != nil {
		p.RegShift = *c.RegShift
	}
	if c.Base != 0 {
		p.Base = c.Base
	}
	if c.Size != 0 {
		p.Size = c.Size
	}
	return p, nil
}

// Validate checks the config.
func (c *Config) Validate() error {
	p, err := c.Profile()
	if err != nil {
		return err
	}
	if p.TickRate == 0 {
		return fmt.Errorf("tick rate is required")
	}
	if p.RegShift > 4 {
		return fmt.Errorf("invalid register shift %d", p.RegShift)
	}
	switch c.Backend.Kind {
	case BackendMMIO:
		if p.Base == 0 || p.Size < int(uart.Offset(uart.RegCount, p.RegShift)) {
			return fmt.Errorf("invalid register window %#x+%#x", p.Base, p.Size)
		}
		// mapped registers are accessed as aligned 32-bit words
		if p.RegShift < 2 || p.Base&3 != 0 {
			return fmt.Errorf("backend %s requires 32-bit aligned registers (reg_shift >= 2)", c.Backend.Kind)
		}
	case BackendTTY:
		if c.Backend.Device == "" {
			return fmt.Errorf("backend %s requires a device", c.Backend.Kind)
		}
	case BackendWS:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend %s requires a url", c.Backend.Kind)
		}
	case BackendSim:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend.Kind)
	}
	pol := c.Policy
	for name, val := range map[string]int{
		"attempts":            pol.Attempts,
		"response_capacity":   pol.ResponseCapacity,
		"flush_settle_ms":     pol.FlushSettleMs,
		"command_interval_ms": pol.CommandIntervalMs,
		"read_polls":          pol.ReadPolls,
		"poll_interval_ms":    pol.PollIntervalMs,
	} {
		if val < 0 {
			return fmt.Errorf("policy.%s must not be negative", name)
		}
	}
	if pol.ResponseCapacity != 0 && pol.ResponseCapacity < micon.MinResponseLen {
		return fmt.Errorf("policy.response_capacity must be at least %d", micon.MinResponseLen)
	}
	return nil
}

// SenderPolicy returns the retry policy with the overrides applied.
func (c *Config) SenderPolicy() micon.Policy {
	p := micon.DefaultPolicy()
	if c.Policy.Attempts > 0 {
		p.Attempts = c.Policy.Attempts
	}
	if c.Policy.ResponseCapacity > 0 {
		p.ResponseCapacity = c.Policy.ResponseCapacity
	}
	if c.Policy.FlushSettleMs > 0 {
		p.FlushSettle = time.Duration(c.Policy.FlushSettleMs) * time.Millisecond
	}
	if c.Policy.CommandIntervalMs > 0 {
		p.CommandInterval = time.Duration(c.Policy.CommandIntervalMs) * time.Millisecond
	}
	return p
}

// LineOptions returns the poll options with the overrides applied.
func (c *Config) LineOptions() []uart.Option {
	polls, interval := uart.DefaultReadPolls, uart.DefaultPollInterval
	if c.Policy.ReadPolls > 0 {
		polls = c.Policy.ReadPolls
	}
	if c.Policy.PollIntervalMs > 0 {
		interval = time.Duration(c.Policy.PollIntervalMs) * time.Millisecond
	}
	return []uart.Option{uart.WithReadPolls(polls, interval)}
}

// Node returns the configured node id or the machine derived one.
func (c *Config) Node() string {
	if c.MQTT.NodeID != "" {
		return c.MQTT.NodeID
	}
	return NodeID()
}
