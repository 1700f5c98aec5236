package chat_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/windward-labs/tripsmith/pkg/model"
)

type llmStep struct {
	msg openai.ChatCompletionMessage
	err error
}

// scriptedLLM replays canned provider responses in order, independently for
// the streaming and non-streaming entrypoints.
type scriptedLLM struct {
	mu              sync.Mutex
	stream          []llmStep
	completions     []llmStep
	streamCalls     int
	completionCalls int
	embedFn         func(text string) ([]float32, error)
}

func (m *scriptedLLM) StreamCompletion(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool, onDelta func(text string)) (openai.ChatCompletionMessage, error) {
	m.mu.Lock()
	idx := m.streamCalls
	m.streamCalls++
	m.mu.Unlock()

	if idx >= len(m.stream) {
		return openai.ChatCompletionMessage{}, goerr.New("no scripted stream response")
	}
	step := m.stream[idx]
	if step.err != nil {
		return openai.ChatCompletionMessage{}, step.err
	}
	if step.msg.Content != "" && onDelta != nil {
		half := len(step.msg.Content) / 2
		onDelta(step.msg.Content[:half])
		onDelta(step.msg.Content[half:])
	}
	return step.msg, nil
}

func (m *scriptedLLM) Completion(ctx context.Context, msgs []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	m.mu.Lock()
	idx := m.completionCalls
	m.completionCalls++
	m.mu.Unlock()

	if idx >= len(m.completions) {
		return openai.ChatCompletionMessage{}, goerr.New("no scripted completion response")
	}
	step := m.completions[idx]
	if step.err != nil {
		return openai.ChatCompletionMessage{}, step.err
	}
	return step.msg, nil
}

func (m *scriptedLLM) Embedding(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// memHistory is an in-memory HistoryStore
type memHistory struct {
	mu   sync.Mutex
	msgs map[string][]model.ChatMessage
}

func newMemHistory() *memHistory {
	return &memHistory{msgs: make(map[string][]model.ChatMessage)}
}

func (s *memHistory) List(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatMessage(nil), s.msgs[userID]...), nil
}

func (s *memHistory) Append(ctx context.Context, userID string, msgs ...model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[userID] = append(s.msgs[userID], msgs...)
	return nil
}

func (s *memHistory) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.msgs, userID)
	return nil
}

// memStore is an in-memory MemoryStore with optional error injection
type memStore struct {
	mu        sync.Mutex
	records   []model.MemoryRecord
	searchErr error
	put       chan model.MemoryRecord
}

func (s *memStore) Put(ctx context.Context, rec model.MemoryRecord) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	if s.put != nil {
		s.put <- rec
	}
	return nil
}

func (s *memStore) Search(ctx context.Context, userID string, embedding []float32, limit int) ([]model.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}

	var out []model.MemoryRecord
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.UserID != userID {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	return nil
}
