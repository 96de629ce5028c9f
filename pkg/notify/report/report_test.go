package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/micon.go/pkg/micon"
	"github.com/robotalks/micon.go/pkg/micon/shutdown"
	"github.com/robotalks/micon.go/pkg/uart"
)

func testReport() *shutdown.Report {
	start := time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)
	ok := micon.Result{
		Frame:    micon.NewFrame([]byte{0x00, 0x06}),
		Attempts: []micon.Attempt{{N: 1, Outcome: micon.OutcomeAck}},
	}
	failed := micon.Result{
		Frame: micon.NewFrame([]byte{0x01, 0x35, 0x00}),
		Attempts: []micon.Attempt{
			{N: 1, Outcome: micon.OutcomeShort},
			{N: 2, Outcome: micon.OutcomeShort},
			{N: 3, Outcome: micon.OutcomeShort},
		},
	}
	failed.Err = &micon.LinkError{Frame: failed.Frame, Attempts: 3, Last: micon.OutcomeShort}
	return &shutdown.Report{
		Reason:  shutdown.ReasonHalt,
		Divisor: 271,
		Format:  uart.Format8E1,
		Results: []shutdown.CommandResult{
			{Command: shutdown.WatchdogKill, Result: failed},
			{Command: shutdown.PowerOff, Result: ok},
		},
		Start: start,
		End:   start.Add(350 * time.Millisecond),
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode("node1", testReport())
	require.NoError(t, err)
	sum, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "node1", sum.Node)
	require.Equal(t, "halt", sum.Reason)
	require.Equal(t, 271, sum.Divisor)
	require.Equal(t, "8E1", sum.Format)
	require.Equal(t, 1, sum.Acknowledged)
	require.Equal(t, 350*time.Millisecond, sum.Duration)
	require.True(t, sum.Start.Equal(testReport().Start))
	require.Len(t, sum.Commands, 2)
	require.Equal(t, Command{Name: "watchdog-kill", Frame: "01 35 00 ca", Attempts: 3,
		Error: testReport().Results[0].Result.Err.Error()}, sum.Commands[0])
	require.Equal(t, Command{Name: "power-off", Frame: "00 06 fa", Attempts: 1, OK: true}, sum.Commands[1])
}

func TestEncodeJSON(t *testing.T) {
	out, err := EncodeJSON("node1", testReport())
	require.NoError(t, err)
	require.True(t, strings.Contains(out, `"reason": "halt"`))
	require.True(t, strings.Contains(out, `"start": "2019-06-01T12:00:00Z"`))
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff})
	require.Error(t, err)
	_, err = Decode(nil)
	require.Error(t, err)
}
