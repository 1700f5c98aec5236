package chat

import (
	"github.com/windward-labs/tripsmith/pkg/model"
)

// Sanitize enforces the provider's ordering precondition on tool-result
// messages: every function-result part must reference a call id declared by a
// function-call part of an earlier assistant message in the same sequence.
//
// A leading run of tool-role messages has no possible matching call and is
// dropped. Tool-role messages later in the sequence keep only their matching
// result parts; a message left with no parts is dropped. All other roles pass
// through unchanged, in order. Sanitize never fails; malformed input degrades
// to a shorter, always-valid sequence.
func Sanitize(msgs []model.ChatMessage) []model.ChatMessage {
	start := 0
	for start < len(msgs) && msgs[start].Role == model.RoleTool {
		start++
	}
	if start == len(msgs) {
		return nil
	}

	validCalls := make(map[string]bool)
	out := make([]model.ChatMessage, 0, len(msgs)-start)

	for _, msg := range msgs[start:] {
		switch msg.Role {
		case model.RoleAssistant:
			for _, p := range msg.FunctionCalls() {
				if p.CallID != "" {
					validCalls[p.CallID] = true
				}
			}
			out = append(out, msg)

		case model.RoleTool:
			kept := make([]model.Part, 0, len(msg.Contents))
			for _, p := range msg.Contents {
				if p.Type == model.PartTypeFunctionResult && validCalls[p.CallID] {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				continue
			}
			msg.Contents = kept
			out = append(out, msg)

		default:
			out = append(out, msg)
		}
	}

	return out
}
