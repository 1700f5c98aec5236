package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// Role is the conversational role of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

type PartType string

const (
	PartTypeText           PartType = "text"
	PartTypeFunctionCall   PartType = "function_call"
	PartTypeFunctionResult PartType = "function_result"
)

// Part is one typed content element of a ChatMessage. Text parts carry Text;
// function-call parts carry CallID/Name/Arguments; function-result parts carry
// CallID plus the structured Result and the raw payload string that was sent
// back to the provider.
type Part struct {
	Type PartType `json:"type"`

	Text string `json:"text,omitempty"`

	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	Result    *ToolResult `json:"result,omitempty"`
	RawResult string      `json:"raw_result,omitempty"`
}

// ChatMessage is a single message in a conversation history
type ChatMessage struct {
	ID       MessageID `json:"id"`
	Role     Role      `json:"role"`
	Author   string    `json:"author,omitempty"`
	Contents []Part    `json:"contents"`
}

// NewTextMessage creates a message with a single text part
func NewTextMessage(role Role, text string) ChatMessage {
	return ChatMessage{
		ID:       NewMessageID(),
		Role:     role,
		Contents: []Part{{Type: PartTypeText, Text: text}},
	}
}

// Text concatenates all text parts of the message in order
func (m ChatMessage) Text() string {
	var sb strings.Builder
	for _, p := range m.Contents {
		if p.Type == PartTypeText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// FunctionCalls returns the function-call parts of the message
func (m ChatMessage) FunctionCalls() []Part {
	var calls []Part
	for _, p := range m.Contents {
		if p.Type == PartTypeFunctionCall {
			calls = append(calls, p)
		}
	}
	return calls
}

// OpenAI converts the message to provider wire messages. Assistant messages
// become a single message carrying text and tool calls; tool messages expand
// to one wire message per function-result part because the provider accepts
// only one tool_call_id per tool-role message.
func (m ChatMessage) OpenAI() []openai.ChatCompletionMessage {
	switch m.Role {
	case RoleAssistant:
		msg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: m.Text(),
		}
		for _, p := range m.FunctionCalls() {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   p.CallID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      p.Name,
					Arguments: p.Arguments,
				},
			})
		}
		return []openai.ChatCompletionMessage{msg}

	case RoleTool:
		var msgs []openai.ChatCompletionMessage
		for _, p := range m.Contents {
			if p.Type != PartTypeFunctionResult {
				continue
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: p.CallID,
				Content:    p.RawResult,
			})
		}
		return msgs

	case RoleSystem:
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: m.Text(),
		}}

	default:
		return []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: m.Text(),
		}}
	}
}

// ToOpenAI converts an ordered message sequence to provider wire messages
func ToOpenAI(msgs []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.OpenAI()...)
	}
	return out
}
