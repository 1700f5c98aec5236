package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/tool"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
)

// Update is one item of a turn's output stream. Reply carries the cumulative
// assistant text; Event is set when a UI event is being relayed.
type Update struct {
	Reply string
	Event *model.UIEvent
}

// Orchestrator drives a single chat turn end to end: memory retrieval, the
// streaming LLM call with interleaved tool execution, the fair merge of text
// increments and progress events into one ordered stream, and a one-shot
// non-streaming fallback when the provider rejects the streamed tool-call
// ordering.
type Orchestrator struct {
	agent   *Agent
	memory  *MemoryGate
	history repository.HistoryStore
}

func NewOrchestrator(agent *Agent, memory *MemoryGate, history repository.HistoryStore) *Orchestrator {
	return &Orchestrator{
		agent:   agent,
		memory:  memory,
		history: history,
	}
}

// StreamTurn runs one turn. Updates arrive on the first channel in order; the
// second channel delivers at most one terminal error. Both channels close
// when the turn finishes, and every failure path still terminates the stream.
func (o *Orchestrator) StreamTurn(ctx context.Context, userID, input string) (<-chan Update, <-chan error) {
	updates := make(chan Update)
	errCh := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errCh)
		if err := o.runTurn(ctx, userID, input, updates); err != nil {
			errCh <- err
		}
	}()

	return updates, errCh
}

func (o *Orchestrator) runTurn(ctx context.Context, userID, input string, updates chan<- Update) error {
	logger := logging.From(ctx).With("user_id", userID)
	startedAt := time.Now()

	emit := func(reply string, ev model.UIEvent) {
		updates <- Update{Reply: reply, Event: &ev}
	}

	emit("", model.NewUIEvent(model.EventUserMessage, "💬", "You", input))

	sink := NewEventSink()
	ctx = tool.WithReporter(ctx, sink)
	ctx = tool.WithUserID(ctx, userID)

	// RETRIEVING_CONTEXT
	memoryContext := o.memory.Retrieve(ctx, userID, input)
	if memoryContext != "" {
		emit("", model.NewUIEvent(model.EventContextRetrieved, "🧠", "Memory", "Retrieved relevant memories").
			WithExtra("context_chars", len(memoryContext)))
		emit("", model.NewUIEvent(model.EventContextSubmitted, "📤", "Memory", "Context attached to request"))
	} else {
		emit("", model.NewUIEvent(model.EventToolLog, "🧠", "Memory", "No relevant memories found"))
	}

	history, err := o.history.List(ctx, userID)
	if err != nil {
		// A missing history degrades to a fresh conversation
		logger.Warn("failed to load chat history", "error", err)
		history = nil
	}
	history = Sanitize(history)

	emit("", model.NewUIEvent(model.EventLLMResponseStart, "🤖", "Assistant", "Thinking"))

	// STREAMING: two producers feeding two queues; the text producer closes
	// textCh when the stream completes, which seals the sink so the merge
	// below observes both sentinels.
	textCh := make(chan string, 64)
	resCh := make(chan streamResult, 1)

	go func(textCh chan<- string) {
		defer close(textCh)
		var started bool
		msgs, err := o.agent.RunStream(ctx, history, memoryContext, input, func(text string) {
			if !started {
				started = true
				sink.Emit(model.NewUIEvent(model.EventTokenStreamStart, "✨", "Assistant", "Streaming reply"))
			}
			textCh <- text
		})
		resCh <- streamResult{msgs: msgs, err: err}
	}(textCh)

	var reply strings.Builder
	events := sink.Events()
	for textCh != nil || events != nil {
		select {
		case text, ok := <-textCh:
			if !ok {
				textCh = nil
				sink.Close()
				continue
			}
			if text == "" {
				continue
			}
			reply.WriteString(text)
			updates <- Update{Reply: reply.String()}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			emit(reply.String(), ev)
		}
	}

	res := <-resCh
	produced := res.msgs
	finalReply := reply.String()

	if res.err != nil {
		if !adapter.IsToolOrderingError(res.err) {
			return goerr.Wrap(res.err, "streaming turn failed", goerr.V("user_id", userID))
		}

		// FALLBACK_RUN: one non-streaming replay of the same turn. If it
		// also fails, the original streaming error is the one surfaced.
		logger.Warn("provider rejected tool-call ordering, replaying without streaming", "error", res.err)
		emit(reply.String(), model.NewUIEvent(model.EventFallbackRun, "🔁", "Assistant", "Replaying turn without streaming"))
		msgs, ferr := o.agent.Run(ctx, history, memoryContext, input)
		if ferr != nil {
			logger.Error("fallback run failed", "error", ferr)
			return goerr.Wrap(res.err, "streaming turn failed and fallback run did not recover", goerr.V("user_id", userID))
		}

		produced = msgs
		finalReply = AssistantText(msgs)
		updates <- Update{Reply: finalReply}

		if path := calendarPathFrom(msgs); path != "" {
			emit(finalReply, model.NewUIEvent(model.EventToolResult, "📅", "Calendar", "Calendar file ready").
				WithExtra("file_path", path))
		}
	}

	// DONE
	if finalReply != "" {
		emit(finalReply, model.NewUIEvent(model.EventLLMResponseEnd, "✅", "Assistant", "Reply complete").
			WithExtra("elapsed_ms", time.Since(startedAt).Milliseconds()))
	}

	userMsg := model.NewTextMessage(model.RoleUser, input)
	userMsg.Author = userID
	if err := o.history.Append(ctx, userID, append([]model.ChatMessage{userMsg}, produced...)...); err != nil {
		logger.Warn("failed to persist chat history", "error", err)
	}

	o.memory.ScheduleWrite(userID, input, finalReply)

	return nil
}

type streamResult struct {
	msgs []model.ChatMessage
	err  error
}

// calendarFileRe is the last-resort scan for a calendar path embedded in a
// free-text payload
var calendarFileRe = regexp.MustCompile(`(/[^\s"]+\.ics)`)

// calendarPathFrom digs a generated calendar file path out of tool results:
// the structured field first, then a JSON payload parse, then a best-effort
// regex scan over the raw payload.
func calendarPathFrom(msgs []model.ChatMessage) string {
	for _, msg := range msgs {
		if msg.Role != model.RoleTool {
			continue
		}
		for _, p := range msg.Contents {
			if p.Type != model.PartTypeFunctionResult {
				continue
			}
			if p.Result != nil && p.Result.FilePath != "" {
				return p.Result.FilePath
			}
			if p.RawResult == "" {
				continue
			}
			var parsed model.ToolResult
			if err := json.Unmarshal([]byte(p.RawResult), &parsed); err == nil && parsed.FilePath != "" {
				return parsed.FilePath
			}
			if m := calendarFileRe.FindString(p.RawResult); m != "" {
				return m
			}
		}
	}
	return ""
}

// Reset clears everything stored for a user: chat history and long-term
// memories.
func Reset(ctx context.Context, history repository.HistoryStore, memories repository.MemoryStore, userID string) error {
	if err := history.Clear(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to clear chat history", goerr.V("user_id", userID))
	}
	if err := memories.Clear(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to clear memories", goerr.V("user_id", userID))
	}
	logging.From(ctx).Info("user state reset", "user_id", userID)
	return nil
}

// ErrorReply renders an unrecovered turn failure as the short human-readable
// string shown in place of the in-progress assistant reply.
func ErrorReply(err error) string {
	return fmt.Sprintf("Sorry, something went wrong while planning: %v", err)
}
