package chat_test

import (
	"context"
	"testing"

	ics "github.com/arran4/golang-ical"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/sashabaranov/go-openai"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/tool"
	"github.com/windward-labs/tripsmith/pkg/tool/calendar"
	"github.com/windward-labs/tripsmith/pkg/tool/search"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

const orderingErrMsg = "Invalid parameter: messages with role 'tool' must be a response to a preceding message with 'tool_calls'"

type searchStub struct {
	results []model.SearchResult
}

func (s *searchStub) Search(ctx context.Context, query string, includeDomains []string) ([]model.SearchResult, error) {
	return s.results, nil
}

func (s *searchStub) Extract(ctx context.Context, urls []string) ([]model.Extraction, error) {
	var out []model.Extraction
	for _, u := range urls {
		out = append(out, model.Extraction{URL: u, Content: "details"})
	}
	return out, nil
}

type calWriterStub struct{}

func (calWriterStub) Write(cal *ics.Calendar, path string) error { return nil }

func newOrchestrator(t *testing.T, llm *scriptedLLM, tools *tool.Registry) (*chat.Orchestrator, *memHistory, *memStore) {
	t.Helper()
	history := newMemHistory()
	memories := &memStore{}
	gate := chat.NewMemoryGate(llm, memories)
	agent := chat.NewAgent(llm, tools)
	return chat.NewOrchestrator(agent, gate, history), history, memories
}

func collect(t *testing.T, o *chat.Orchestrator, userID, input string) ([]chat.Update, error) {
	t.Helper()
	updates, errCh := o.StreamTurn(context.Background(), userID, input)
	var got []chat.Update
	for u := range updates {
		got = append(got, u)
	}
	return got, <-errCh
}

func eventTypes(updates []chat.Update) []model.EventType {
	var types []model.EventType
	for _, u := range updates {
		if u.Event != nil {
			types = append(types, u.Event.Type)
		}
	}
	return types
}

func TestTurnEventOrdering(t *testing.T) {
	llm := &scriptedLLM{stream: []llmStep{
		{msg: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Hello! Where would you like to go?"}},
	}}
	o, _, _ := newOrchestrator(t, llm, tool.New())

	updates, err := collect(t, o, "alice", "hi")
	gt.NoError(t, err)

	types := eventTypes(updates)
	gt.True(t, len(types) >= 2)
	gt.Equal(t, types[0], model.EventUserMessage)
	gt.Equal(t, types[len(types)-1], model.EventLLMResponseEnd)
	gt.Equal(t, updates[len(updates)-1].Reply, "Hello! Where would you like to go?")
}

func TestTurnCumulativeTextMonotonic(t *testing.T) {
	llm := &scriptedLLM{stream: []llmStep{
		{msg: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "A short streamed reply."}},
	}}
	o, _, _ := newOrchestrator(t, llm, tool.New())

	updates, err := collect(t, o, "alice", "hi")
	gt.NoError(t, err)

	prev := 0
	for _, u := range updates {
		gt.True(t, len(u.Reply) >= prev)
		prev = len(u.Reply)
	}
}

func TestTurnToolLoopEndToEnd(t *testing.T) {
	llm := &scriptedLLM{stream: []llmStep{
		{msg: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:   "call_1",
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      "search_general",
					Arguments: `{"query":"things to do in Lisbon June 2026"}`,
				},
			}},
		}},
		{msg: openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: "Here is a four-day Lisbon itinerary for June 2026.",
		}},
	}}
	tools := tool.New(search.New(&searchStub{results: []model.SearchResult{
		{Title: "Lisbon guide", URL: "https://example.com/lisbon", Score: 0.9},
	}}))
	o, history, _ := newOrchestrator(t, llm, tools)

	updates, err := collect(t, o, "alice", "Plan a trip to Lisbon June 2026")
	gt.NoError(t, err)

	types := eventTypes(updates)
	gt.Equal(t, types[0], model.EventUserMessage)
	gt.Equal(t, types[len(types)-1], model.EventLLMResponseEnd)

	seen := make(map[model.EventType]bool)
	for _, typ := range types {
		seen[typ] = true
	}
	gt.True(t, seen[model.EventToolCall])
	gt.True(t, seen[model.EventToolResult])

	final := updates[len(updates)-1].Reply
	gt.S(t, final).Contains("Lisbon itinerary")

	// user + assistant(tool call) + tool result + assistant(text)
	msgs, listErr := history.List(context.Background(), "alice")
	gt.NoError(t, listErr)
	gt.A(t, msgs).Length(4)
	gt.Equal(t, msgs[0].Role, model.RoleUser)
	gt.Equal(t, msgs[2].Role, model.RoleTool)
}

func TestTurnFallbackOnOrderingError(t *testing.T) {
	llm := &scriptedLLM{
		stream: []llmStep{{err: goerr.New(orderingErrMsg)}},
		completions: []llmStep{
			{msg: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Recovered itinerary text."}},
		},
	}
	o, _, _ := newOrchestrator(t, llm, tool.New())

	updates, err := collect(t, o, "alice", "continue planning")
	gt.NoError(t, err)
	gt.Equal(t, llm.completionCalls, 1)

	types := eventTypes(updates)
	seen := map[model.EventType]bool{}
	for _, typ := range types {
		seen[typ] = true
	}
	gt.True(t, seen[model.EventFallbackRun])
	gt.Equal(t, types[len(types)-1], model.EventLLMResponseEnd)
	gt.Equal(t, updates[len(updates)-1].Reply, "Recovered itinerary text.")
}

func TestTurnFallbackExtractsCalendarPath(t *testing.T) {
	llm := &scriptedLLM{
		stream: []llmStep{{err: goerr.New(orderingErrMsg)}},
		completions: []llmStep{
			{msg: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "generate_calendar_ics",
						Arguments: `{"title":"Flight","date":"2026-06-05","start_time":"09:00"}`,
					},
				}},
			}},
			{msg: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Your calendar file is ready."}},
		},
	}
	tools := tool.New(calendar.New(calWriterStub{}, t.TempDir()))
	o, _, _ := newOrchestrator(t, llm, tools)

	updates, err := collect(t, o, "alice", "export calendar")
	gt.NoError(t, err)

	var filePath string
	for _, u := range updates {
		if u.Event != nil && u.Event.Type == model.EventToolResult {
			if p, ok := u.Event.Extras["file_path"].(string); ok {
				filePath = p
			}
		}
	}
	gt.S(t, filePath).Contains(".ics")
	gt.Equal(t, updates[len(updates)-1].Reply, "Your calendar file is ready.")
}

func TestTurnFallbackFailureSurfacesOriginalError(t *testing.T) {
	llm := &scriptedLLM{
		stream:      []llmStep{{err: goerr.New(orderingErrMsg)}},
		completions: []llmStep{{err: goerr.New("provider outage")}},
	}
	o, _, _ := newOrchestrator(t, llm, tool.New())

	_, err := collect(t, o, "alice", "continue planning")
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("fallback run did not recover")
	gt.Equal(t, llm.completionCalls, 1)
}

func TestTurnUnrecognizedErrorSkipsFallback(t *testing.T) {
	llm := &scriptedLLM{
		stream: []llmStep{{err: goerr.New("rate limit exceeded")}},
	}
	o, _, _ := newOrchestrator(t, llm, tool.New())

	_, err := collect(t, o, "alice", "hi")
	gt.Error(t, err)
	gt.Equal(t, llm.completionCalls, 0)
}

func TestTurnMemoryContextEvents(t *testing.T) {
	llm := &scriptedLLM{stream: []llmStep{
		{msg: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "Noted, aisle seats it is."}},
	}}
	o, _, memories := newOrchestrator(t, llm, tool.New())
	memories.records = append(memories.records, model.MemoryRecord{
		ID:      model.NewMemoryID(),
		UserID:  "alice",
		Content: "prefers aisle seats",
	})

	updates, err := collect(t, o, "alice", "book my usual seat")
	gt.NoError(t, err)

	types := eventTypes(updates)
	seen := make(map[model.EventType]bool)
	for _, typ := range types {
		seen[typ] = true
	}
	gt.True(t, seen[model.EventContextRetrieved])
	gt.True(t, seen[model.EventContextSubmitted])
}
