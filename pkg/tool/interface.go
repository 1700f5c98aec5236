package tool

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sashabaranov/go-openai"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/model"
)

// Tool represents a capability that can be called by the LLM
type Tool interface {
	// Specs returns the function specifications for provider tool calling.
	// One tool may expose several functions.
	Specs() []openai.Tool

	// Execute runs the named function with JSON-encoded arguments. Failures
	// are reported inside the result's Error field; an error return is
	// reserved for invocation-level problems (unknown function, bad args)
	// and is converted to an error result by the caller.
	Execute(ctx context.Context, name string, args json.RawMessage) (*model.ToolResult, error)

	// Prompt returns additional information to be added to the system prompt.
	// Returns empty string if no additional prompt is needed.
	Prompt(ctx context.Context) string

	// Flags returns CLI flags for this tool
	Flags() []cli.Flag
}

// NewFunction builds a provider function spec from a JSON schema
func NewFunction(name, description string, params *jsonschema.Schema) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// Reporter receives progress notifications from running tools. The turn
// orchestrator installs one per turn; tools reach it through the context so
// nested call frames never depend on process-wide stream substitution.
type Reporter interface {
	// Emit delivers a structured event
	Emit(ev model.UIEvent)

	// Log delivers a raw output line, which may carry structured events in
	// the model.LogLinePrefix convention
	Log(line string)
}

type reporterKey struct{}

// WithReporter attaches a turn-scoped reporter to the context
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

// ReporterFrom retrieves the reporter, or nil when none is installed
func ReporterFrom(ctx context.Context) Reporter {
	if r, ok := ctx.Value(reporterKey{}).(Reporter); ok {
		return r
	}
	return nil
}

// Emit sends a structured event to the turn's reporter, if any
func Emit(ctx context.Context, ev model.UIEvent) {
	if r := ReporterFrom(ctx); r != nil {
		r.Emit(ev)
	}
}

// Log sends a raw progress line to the turn's reporter, if any
func Log(ctx context.Context, line string) {
	if r := ReporterFrom(ctx); r != nil {
		r.Log(line)
	}
}

type userIDKey struct{}

// WithUserID binds the acting user to the context for tools that key output
// by user (calendar directories, event identifiers)
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom retrieves the acting user, defaulting to "default"
func UserIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok && id != "" {
		return id
	}
	return "default"
}
