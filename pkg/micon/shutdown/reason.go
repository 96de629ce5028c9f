package shutdown

import (
	"fmt"
	"strings"
)

// Reason is the kind of system transition being notified.
// Values match the kernel's reboot notifier codes.
type Reason int

// Reasons.
const (
	// ReasonDown is an orderly shutdown (SYS_DOWN, also used for restart).
	ReasonDown Reason = 0x0001
	// ReasonHalt is a system halt (SYS_HALT).
	ReasonHalt Reason = 0x0002
	// ReasonPowerOff is SYS_POWER_OFF. It is not handled by the sequencer.
	ReasonPowerOff Reason = 0x0003
)

var reasonNames = map[Reason]string{
	ReasonDown:     "down",
	ReasonHalt:     "halt",
	ReasonPowerOff: "power-off",
}

// String implements fmt.Stringer.
func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Accepted indicates the sequencer reacts to the reason.
func (r Reason) Accepted() bool {
	return r == ReasonDown || r == ReasonHalt
}

// ParseReason parses a reason name. "restart" is an alias of "down".
func ParseReason(s string) (Reason, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down", "restart":
		return ReasonDown, nil
	case "halt":
		return ReasonHalt, nil
	case "power-off", "poweroff":
		return ReasonPowerOff, nil
	}
	return 0, fmt.Errorf("unknown reason %q", s)
}

// Disposition is returned by Notify to the host.
type Disposition int

const (
	// NotHandled tells the host the notification is not for this handler.
	NotHandled Disposition = iota
	// Handled tells the host the notification was processed.
	Handled
)

// String implements fmt.Stringer.
func (d Disposition) String() string {
	if d == Handled {
		return "handled"
	}
	return "not handled"
}

// ParseVerb maps a systemd-shutdown verb to a reason. kexec and unknown
// verbs are not handled.
func ParseVerb(verb string) (Reason, bool) {
	switch strings.ToLower(strings.TrimSpace(verb)) {
	case "halt", "poweroff":
		return ReasonHalt, true
	case "reboot":
		return ReasonDown, true
	}
	return 0, false
}
