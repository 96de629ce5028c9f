// Package report encodes power-off reports as protobuf Struct messages.
package report

import (
	"fmt"
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/micon.go/pkg/micon/shutdown"
)

// Field names.
const (
	FieldNode         = "node"
	FieldReason       = "reason"
	FieldDivisor      = "divisor"
	FieldFormat       = "format"
	FieldAcknowledged = "acknowledged"
	FieldStart        = "start"
	FieldDurationMS   = "duration_ms"
	FieldCommands     = "commands"
	FieldName         = "name"
	FieldFrame        = "frame"
	FieldAttempts     = "attempts"
	FieldOK           = "ok"
	FieldError        = "error"
)

// Command summarizes one command of a report.
type Command struct {
	Name     string
	Frame    string
	Attempts int
	OK       bool
	Error    string
}

// Summary is the decoded form of a report.
type Summary struct {
	Node         string
	Reason       string
	Divisor      int
	Format       string
	Acknowledged int
	Start        time.Time
	Duration     time.Duration
	Commands     []Command
}

// ToStruct converts a report.
func ToStruct(node string, r *shutdown.Report) (*structpb.Struct, error) {
	ts, err := ptypes.TimestampProto(r.Start)
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}
	cmds := make([]*structpb.Value, 0, len(r.Results))
	for _, res := range r.Results {
		fields := map[string]*structpb.Value{
			FieldName:     stringValue(res.Command.Name),
			FieldFrame:    stringValue(res.Result.Frame.String()),
			FieldAttempts: numberValue(float64(len(res.Result.Attempts))),
			FieldOK:       boolValue(res.Result.OK()),
		}
		if res.Result.Err != nil {
			fields[FieldError] = stringValue(res.Result.Err.Error())
		}
		cmds = append(cmds, structValue(fields))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldNode:         stringValue(node),
		FieldReason:       stringValue(r.Reason.String()),
		FieldDivisor:      numberValue(float64(r.Divisor)),
		FieldFormat:       stringValue(r.Format.String()),
		FieldAcknowledged: numberValue(float64(r.Acknowledged())),
		FieldStart:        stringValue(ptypes.TimestampString(ts)),
		FieldDurationMS:   numberValue(float64(r.End.Sub(r.Start)) / float64(time.Millisecond)),
		FieldCommands:     listValue(cmds),
	}}, nil
}

// Encode converts a report to protobuf wire format.
func Encode(node string, r *shutdown.Report) ([]byte, error) {
	s, err := ToStruct(node, r)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// EncodeJSON converts a report to the JSON mapping of Struct.
func EncodeJSON(node string, r *shutdown.Report) (string, error) {
	s, err := ToStruct(node, r)
	if err != nil {
		return "", err
	}
	m := &jsonpb.Marshaler{Indent: "  "}
	return m.MarshalToString(s)
}

// Decode parses an encoded report.
func Decode(data []byte) (*Summary, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return FromStruct(&s)
}

// FromStruct converts a Struct back to a Summary.
func FromStruct(s *structpb.Struct) (*Summary, error) {
	f := s.GetFields()
	sum := &Summary{
		Node:         f[FieldNode].GetStringValue(),
		Reason:       f[FieldReason].GetStringValue(),
		Divisor:      int(f[FieldDivisor].GetNumberValue()),
		Format:       f[FieldFormat].GetStringValue(),
		Acknowledged: int(f[FieldAcknowledged].GetNumberValue()),
		Duration:     time.Duration(f[FieldDurationMS].GetNumberValue() * float64(time.Millisecond)),
	}
	if sum.Reason == "" {
		return nil, fmt.Errorf("missing %s", FieldReason)
	}
	if start := f[FieldStart].GetStringValue(); start != "" {
		t, err := time.Parse(time.RFC3339Nano, start)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", FieldStart, err)
		}
		sum.Start = t
	}
	for _, v := range f[FieldCommands].GetListValue().GetValues() {
		cf := v.GetStructValue().GetFields()
		sum.Commands = append(sum.Commands, Command{
			Name:     cf[FieldName].GetStringValue(),
			Frame:    cf[FieldFrame].GetStringValue(),
			Attempts: int(cf[FieldAttempts].GetNumberValue()),
			OK:       cf[FieldOK].GetBoolValue(),
			Error:    cf[FieldError].GetStringValue(),
		})
	}
	return sum, nil
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func boolValue(b bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: b}}
}

func listValue(values []*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: values}}}
}

func structValue(fields map[string]*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: fields}}}
}
