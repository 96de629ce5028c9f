// Package board holds the link parameters of supported boards.
package board

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robotalks/micon.go/pkg/uart"
)

// Orion5x UART1, which the microcontroller is wired to.
const (
	Orion5xUART1Base = 0xf1012100
	Orion5xUARTSize  = 0x100
	Orion5xTclk      = 166666667
)

// Profile describes where the link UART lives and how it is clocked.
type Profile struct {
	Name     string
	Base     uint64
	Size     int
	RegShift uint
	TickRate uint32
}

var profiles = map[string]Profile{}

func init() {
	for _, name := range []string{"kurobox-pro", "linkstation-pro", "terastation-pro2"} {
		Register(Profile{
			Name:     name,
			Base:     Orion5xUART1Base,
			Size:     Orion5xUARTSize,
			RegShift: uart.DefaultRegShift,
			TickRate: Orion5xTclk,
		})
	}
}

// Register adds or replaces a profile.
func Register(p Profile) {
	profiles[p.Name] = p
}

// Lookup finds a profile by name.
func Lookup(name string) (Profile, error) {
	if p, ok := profiles[strings.ToLower(name)]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("unknown board %q, known: %s", name, strings.Join(Names(), ", "))
}

// Names lists the registered profiles.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Divisor returns the divisor for baud on this board.
func (p Profile) Divisor(baud int) uint16 {
	return uart.Divisor(p.TickRate, baud)
}
