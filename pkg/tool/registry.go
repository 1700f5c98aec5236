package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/urfave/cli/v3"
	"github.com/windward-labs/tripsmith/pkg/model"
)

var errToolNotFound = goerr.New("tool not found")

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	specs    []openai.Tool
}

// New creates a new tool registry with the given tools
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools:    make(map[string]Tool),
		allTools: tools,
	}

	for _, t := range tools {
		for _, spec := range t.Specs() {
			if spec.Function == nil || spec.Function.Name == "" {
				continue
			}
			r.tools[spec.Function.Name] = t
			r.specs = append(r.specs, spec)
		}
	}

	return r
}

// Specs returns all function specifications for provider tool calling
func (r *Registry) Specs() []openai.Tool {
	return r.specs
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns all tool flags combined
func (r *Registry) Flags() []cli.Flag {
	var flags []cli.Flag
	for _, t := range r.allTools {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the named function
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*model.ToolResult, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "unknown function", goerr.V("name", name))
	}

	return t.Execute(ctx, name, args)
}
