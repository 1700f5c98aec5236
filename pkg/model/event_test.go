package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/windward-labs/tripsmith/pkg/model"
)

func TestFormatLogLine(t *testing.T) {
	ev := model.NewUIEvent(model.EventToolLog, "*", "LOGISTICS SEARCH", "hotels in Kyoto").
		WithExtra("results", 3)

	line := model.FormatLogLine(ev)
	gt.S(t, line).Contains("UI_EVENT {")
	gt.S(t, line).Contains(`"type":"tool_log"`)
	gt.S(t, line).Contains(`"results":3`)
}

func TestParseLogLineStructured(t *testing.T) {
	line := `UI_EVENT {"type":"tool_result","icon":"x","title":"search finished","message":"3 results","results":3}`

	events := model.ParseLogLine(line)
	gt.A(t, events).Length(1)
	gt.Equal(t, events[0].Type, model.EventToolResult)
	gt.Equal(t, events[0].Title, "search finished")
	gt.Equal(t, events[0].Message, "3 results")
	gt.Equal[any](t, events[0].Extras["results"], float64(3))
}

func TestParseLogLineConcatenated(t *testing.T) {
	line := `UI_EVENT {"type":"tool_log","icon":"","title":"a","message":"first"}UI_EVENT {"type":"tool_log","icon":"","title":"b","message":"second"}`

	events := model.ParseLogLine(line)
	gt.A(t, events).Length(2)
	gt.Equal(t, events[0].Message, "first")
	gt.Equal(t, events[1].Message, "second")
}

func TestParseLogLineDefaultsType(t *testing.T) {
	events := model.ParseLogLine(`UI_EVENT {"icon":"","title":"t","message":"m"}`)
	gt.A(t, events).Length(1)
	gt.Equal(t, events[0].Type, model.EventToolLog)
}

func TestParseLogLinePlainText(t *testing.T) {
	events := model.ParseLogLine("Creating agent with tools...")
	gt.A(t, events).Length(1)
	gt.Equal(t, events[0].Type, model.EventToolLog)
	gt.Equal(t, events[0].Message, "Creating agent with tools...")
}

func TestParseLogLineMalformedFallsBack(t *testing.T) {
	events := model.ParseLogLine("UI_EVENT {not json at all")
	gt.A(t, events).Length(1)
	gt.Equal(t, events[0].Type, model.EventToolLog)
	gt.S(t, events[0].Message).Contains("UI_EVENT")
}

func TestParseLogLineEmpty(t *testing.T) {
	gt.A(t, model.ParseLogLine("   ")).Length(0)
}

func TestUIEventRoundTrip(t *testing.T) {
	ev := model.NewUIEvent(model.EventToolResult, "+", "done", "ok").
		WithExtra("file_path", "/tmp/a.ics")

	parsed := model.ParseLogLine(model.FormatLogLine(ev))
	gt.A(t, parsed).Length(1)
	gt.Equal(t, parsed[0].Type, ev.Type)
	gt.Equal(t, parsed[0].Extras["file_path"], "/tmp/a.ics")
}
