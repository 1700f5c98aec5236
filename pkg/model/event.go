package model

import (
	"encoding/json"
	"strings"
)

// EventType tags a UIEvent for the presentation layer
type EventType string

const (
	EventUserMessage      EventType = "user_message"
	EventContextRetrieved EventType = "context_retrieved"
	EventContextSubmitted EventType = "context_submitted"
	EventLLMResponseStart EventType = "llm_response_start"
	EventTokenStreamStart EventType = "llm_token_stream_start"
	EventToolCall         EventType = "tool_call"
	EventToolLog          EventType = "tool_log"
	EventToolResult       EventType = "tool_result"
	EventFallbackRun      EventType = "fallback_run"
	EventLLMResponseEnd   EventType = "llm_response_end"
)

// LogLinePrefix marks a structured event in a captured log line. The format
// is the prefix followed by one JSON object; a single line may carry several
// concatenated occurrences.
const LogLinePrefix = "UI_EVENT "

// UIEvent is a typed, ephemeral notification describing turn progress.
// Consumed once by the presentation layer, never persisted.
type UIEvent struct {
	Type    EventType
	Icon    string
	Title   string
	Message string
	Extras  map[string]any
}

// NewUIEvent creates an event without extras
func NewUIEvent(t EventType, icon, title, message string) UIEvent {
	return UIEvent{Type: t, Icon: icon, Title: title, Message: message}
}

// WithExtra returns a copy of the event with an extra key set
func (e UIEvent) WithExtra(key string, value any) UIEvent {
	extras := make(map[string]any, len(e.Extras)+1)
	for k, v := range e.Extras {
		extras[k] = v
	}
	extras[key] = value
	e.Extras = extras
	return e
}

func (e UIEvent) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, 4+len(e.Extras))
	for k, v := range e.Extras {
		payload[k] = v
	}
	payload["type"] = string(e.Type)
	payload["icon"] = e.Icon
	payload["title"] = e.Title
	payload["message"] = e.Message
	return json.Marshal(payload)
}

func (e *UIEvent) UnmarshalJSON(data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	str := func(key string) string {
		v, _ := payload[key].(string)
		delete(payload, key)
		return v
	}

	e.Type = EventType(str("type"))
	e.Icon = str("icon")
	e.Title = str("title")
	e.Message = str("message")
	if len(payload) > 0 {
		e.Extras = payload
	} else {
		e.Extras = nil
	}
	return nil
}

// FormatLogLine renders the event as a structured log line that ParseLogLine
// recognizes. Tools running far from the sink can print these to report
// progress.
func FormatLogLine(e UIEvent) string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return LogLinePrefix + string(data)
}

// ParseLogLine converts one captured output line into UI events. Structured
// occurrences are split on the prefix and parsed independently; a line with
// no parseable occurrence degrades to a single generic tool_log event.
// Empty lines produce nothing.
func ParseLogLine(line string) []UIEvent {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.Contains(line, LogLinePrefix) {
		parts := strings.Split(line, LogLinePrefix)
		var events []UIEvent
		for _, raw := range parts[1:] {
			chunk := strings.TrimSpace(raw)
			if chunk == "" {
				continue
			}
			var ev UIEvent
			if err := json.Unmarshal([]byte(chunk), &ev); err != nil {
				continue
			}
			if ev.Type == "" {
				ev.Type = EventToolLog
			}
			events = append(events, ev)
		}
		if len(events) > 0 {
			return events
		}
	}

	return []UIEvent{{Type: EventToolLog, Message: line}}
}
