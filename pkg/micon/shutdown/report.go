package shutdown

import (
	"fmt"
	"time"

	fx "github.com/robotalks/micon.go/pkg/framework"
	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/uart"
)

// CommandResult is the outcome of one command of the sequence.
type CommandResult struct {
	Command Command
	Result  micon.Result
}

// Report describes a completed power-off sequence.
type Report struct {
	Reason  Reason
	Divisor uint16
	Format  uart.Format
	Results []CommandResult
	Start   time.Time
	End     time.Time
}

// Acknowledged counts the acknowledged commands.
func (r *Report) Acknowledged() int {
	n := 0
	for _, res := range r.Results {
		if res.Result.OK() {
			n++
		}
	}
	return n
}

// Err aggregates the command failures. It is nil when every command
// was acknowledged.
func (r *Report) Err() error {
	var errs fx.AggregatedError
	for _, res := range r.Results {
		if res.Result.Err != nil {
			errs.Add(fmt.Errorf("%s: %w", res.Command.Name, res.Result.Err))
		}
	}
	return errs.Aggregate()
}

// String summarizes the report.
func (r *Report) String() string {
	return fmt.Sprintf("%v: divisor=%d format=%v acked=%d/%d in %v",
		r.Reason, r.Divisor, r.Format, r.Acknowledged(), len(r.Results), r.End.Sub(r.Start))
}
