package adapter

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// ChatClient wraps the hosted LLM provider. StreamCompletion delivers text
// increments through onDelta while assembling the complete assistant message,
// including any tool calls accumulated from streamed fragments.
type ChatClient interface {
	StreamCompletion(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool, onDelta func(text string)) (openai.ChatCompletionMessage, error)
	Completion(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type OpenAIClient struct {
	client         *openai.Client
	baseURL        string
	model          string
	embeddingModel string
}

type OpenAIOption func(*OpenAIClient)

func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

func WithEmbeddingModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.embeddingModel = model
	}
}

// WithBaseURL points the client at a compatible endpoint (Azure OpenAI v1
// style, or a local test server)
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.baseURL = baseURL
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	c := &OpenAIClient{
		model:          "gpt-4.1",
		embeddingModel: "text-embedding-3-small",
	}

	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	c.client = openai.NewClientWithConfig(cfg)

	return c
}

func (c *OpenAIClient) StreamCompletion(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool, onDelta func(text string)) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    tools,
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, goerr.Wrap(err, "failed to open completion stream")
	}
	defer stream.Close()

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, goerr.Wrap(err, "failed to receive stream chunk")
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			msg.Content += delta.Content
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(msg.ToolCalls) <= idx {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			cur := &msg.ToolCalls[idx]
			if tc.ID != "" {
				cur.ID = tc.ID
			}
			if tc.Function.Name != "" {
				cur.Function.Name = tc.Function.Name
			}
			cur.Function.Arguments += tc.Function.Arguments
		}
	}

	return msg, nil
}

func (c *OpenAIClient) Completion(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    tools,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, goerr.Wrap(err, "failed to create completion")
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, goerr.New("completion returned no choices")
	}

	return resp.Choices[0].Message, nil
}

func (c *OpenAIClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding")
	}
	if len(resp.Data) == 0 {
		return nil, goerr.New("embedding response has no data")
	}

	return resp.Data[0].Embedding, nil
}

// Substrings of the provider's rejection of tool-role messages that lack a
// preceding assistant message with matching tool_calls.
const (
	toolOrderingErrPart1 = "messages with role 'tool'"
	toolOrderingErrPart2 = "preceding message with 'tool_calls'"
)

// IsToolOrderingError reports whether the error is the provider's tool-call
// ordering rejection, the only streaming failure that triggers the
// non-streaming fallback run.
func IsToolOrderingError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, toolOrderingErrPart1) && strings.Contains(msg, toolOrderingErrPart2)
}
