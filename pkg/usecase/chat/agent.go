package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/tool"
)

// defaultMaxToolIterations bounds the tool call loop per turn
const defaultMaxToolIterations = 8

const basePrompt = `You are a thoughtful travel-planning assistant. You help users research
destinations, plan itineraries, find flights/hotels/transport, and export
finalized plans as calendar files.

Guidelines:
- Ask a clarifying question when the destination or dates are ambiguous.
- Ground recommendations in search results; cite the source when useful.
- Keep replies concise and structured; prefer day-by-day itineraries.
- When the user confirms an itinerary, offer to generate a calendar file.`

// Agent drives the LLM tool-calling protocol for one conversation. It owns
// prompt assembly and the bounded tool execution loop; streaming versus
// non-streaming is the caller's choice per turn.
type Agent struct {
	llm           adapter.ChatClient
	tools         *tool.Registry
	now           func() time.Time
	maxIterations int
}

type AgentOption func(*Agent)

// WithAgentClock overrides the date source used in the system prompt
func WithAgentClock(now func() time.Time) AgentOption {
	return func(a *Agent) {
		a.now = now
	}
}

// WithMaxIterations overrides the tool call limit per turn
func WithMaxIterations(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func NewAgent(llm adapter.ChatClient, tools *tool.Registry, opts ...AgentOption) *Agent {
	a := &Agent{
		llm:           llm,
		tools:         tools,
		now:           time.Now,
		maxIterations: defaultMaxToolIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunStream executes one turn against the streaming entrypoint, delivering
// text increments through onDelta as they arrive. It returns every message
// the turn produced (assistant and tool), ready for history persistence.
func (a *Agent) RunStream(ctx context.Context, history []model.ChatMessage, memoryContext, input string, onDelta func(text string)) ([]model.ChatMessage, error) {
	return a.loop(ctx, history, memoryContext, input, func(ctx context.Context, wire []openai.ChatCompletionMessage) (openai.ChatCompletionMessage, error) {
		return a.llm.StreamCompletion(ctx, wire, a.tools.Specs(), onDelta)
	})
}

// Run executes one turn against the non-streaming entrypoint. Used as the
// fallback path when the provider rejects the streamed tool-call ordering.
func (a *Agent) Run(ctx context.Context, history []model.ChatMessage, memoryContext, input string) ([]model.ChatMessage, error) {
	return a.loop(ctx, history, memoryContext, input, func(ctx context.Context, wire []openai.ChatCompletionMessage) (openai.ChatCompletionMessage, error) {
		return a.llm.Completion(ctx, wire, a.tools.Specs())
	})
}

type completionFunc func(ctx context.Context, wire []openai.ChatCompletionMessage) (openai.ChatCompletionMessage, error)

func (a *Agent) loop(ctx context.Context, history []model.ChatMessage, memoryContext, input string, complete completionFunc) ([]model.ChatMessage, error) {
	wire := a.buildMessages(ctx, history, memoryContext, input)

	var produced []model.ChatMessage

	for i := 0; i < a.maxIterations; i++ {
		resp, err := complete(ctx, wire)
		if err != nil {
			return nil, goerr.Wrap(err, "completion failed", goerr.V("iteration", i))
		}

		assistant := fromProviderMessage(resp)
		produced = append(produced, assistant)
		wire = append(wire, assistant.OpenAI()...)

		if len(resp.ToolCalls) == 0 {
			return produced, nil
		}

		results := make([]model.Part, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			tool.Emit(ctx, model.NewUIEvent(model.EventToolCall, "🛠️", call.Function.Name, "Calling tool").
				WithExtra("call_id", call.ID).
				WithExtra("arguments", call.Function.Arguments))

			result, err := a.tools.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				// Invocation-level failures become structured error results
				// so the tool-calling protocol always receives a return
				result = model.ErrorResult(fmt.Sprintf("tool execution failed: %v", err))
			}

			raw, err := json.Marshal(result)
			if err != nil {
				raw = []byte(`{"error":"failed to encode tool result"}`)
			}

			results = append(results, model.Part{
				Type:      model.PartTypeFunctionResult,
				CallID:    call.ID,
				Name:      call.Function.Name,
				Result:    result,
				RawResult: string(raw),
			})
		}

		toolMsg := model.ChatMessage{
			ID:       model.NewMessageID(),
			Role:     model.RoleTool,
			Contents: results,
		}
		produced = append(produced, toolMsg)
		wire = append(wire, toolMsg.OpenAI()...)
	}

	return produced, goerr.New("tool call limit exceeded", goerr.V("limit", a.maxIterations))
}

func (a *Agent) buildMessages(ctx context.Context, history []model.ChatMessage, memoryContext, input string) []openai.ChatCompletionMessage {
	system := basePrompt + "\n\nToday's date is " + a.now().UTC().Format("2006-01-02") + " (UTC)."

	if prompts := a.tools.Prompts(ctx); prompts != "" {
		system += "\n\n## Tool usage\n" + prompts
	}
	if memoryContext != "" {
		system += "\n\n## What you remember about this user\n" + memoryContext
	}

	wire := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	}}
	wire = append(wire, model.ToOpenAI(history)...)
	wire = append(wire, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})
	return wire
}

// fromProviderMessage converts a provider response to the internal form
func fromProviderMessage(msg openai.ChatCompletionMessage) model.ChatMessage {
	var contents []model.Part
	if msg.Content != "" {
		contents = append(contents, model.Part{Type: model.PartTypeText, Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		contents = append(contents, model.Part{
			Type:      model.PartTypeFunctionCall,
			CallID:    call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	return model.ChatMessage{
		ID:       model.NewMessageID(),
		Role:     model.RoleAssistant,
		Contents: contents,
	}
}

// AssistantText concatenates, in order, the text parts of every assistant
// message in the sequence.
func AssistantText(msgs []model.ChatMessage) string {
	var sb strings.Builder
	for _, msg := range msgs {
		if msg.Role == model.RoleAssistant {
			sb.WriteString(msg.Text())
		}
	}
	return sb.String()
}
