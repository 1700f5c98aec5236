package chat_test

import (
	"fmt"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

func TestSinkPreservesOrder(t *testing.T) {
	sink := chat.NewEventSink()
	sink.Emit(model.NewUIEvent(model.EventToolCall, "🛠️", "first", ""))
	sink.Emit(model.NewUIEvent(model.EventToolLog, "📊", "second", ""))
	sink.Emit(model.NewUIEvent(model.EventToolResult, "✅", "third", ""))
	sink.Close()

	var titles []string
	for ev := range sink.Events() {
		titles = append(titles, ev.Title)
	}
	gt.Equal(t, titles, []string{"first", "second", "third"})
}

func TestSinkDeliversBurstWithoutLoss(t *testing.T) {
	sink := chat.NewEventSink()
	const n = 1000
	for i := 0; i < n; i++ {
		sink.Emit(model.NewUIEvent(model.EventToolLog, "", fmt.Sprintf("event %d", i), ""))
	}
	sink.Close()

	var titles []string
	for ev := range sink.Events() {
		titles = append(titles, ev.Title)
	}
	gt.A(t, titles).Length(n)
	gt.Equal(t, titles[0], "event 0")
	gt.Equal(t, titles[n-1], fmt.Sprintf("event %d", n-1))
}

func TestSinkLogExpandsStructuredLines(t *testing.T) {
	sink := chat.NewEventSink()
	sink.Log(`UI_EVENT {"type":"tool_result","icon":"✅","title":"SEARCH","message":"done"}`)
	sink.Log("plain progress line")
	sink.Close()

	var events []model.UIEvent
	for ev := range sink.Events() {
		events = append(events, ev)
	}

	gt.A(t, events).Length(2)
	gt.Equal(t, events[0].Type, model.EventToolResult)
	gt.Equal(t, events[0].Title, "SEARCH")
	gt.Equal(t, events[1].Type, model.EventToolLog)
	gt.Equal(t, events[1].Message, "plain progress line")
}

func TestSinkCloseIsIdempotent(t *testing.T) {
	sink := chat.NewEventSink()
	sink.Close()
	sink.Close()

	// Emitting after close drops silently
	sink.Emit(model.NewUIEvent(model.EventToolLog, "", "late", ""))

	_, ok := <-sink.Events()
	gt.False(t, ok)
}
