package chat

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
)

const (
	maxContextLines = 12
	maxContextChars = 2000
	truncationMark  = "…"

	defaultSearchLimit = 5
	writeTimeout       = 30 * time.Second
)

// MemoryGate mediates long-term memory for a turn. Retrieval is synchronous
// at turn start and bounded for token budget; writes run as detached
// background tasks that never block the user-visible stream.
type MemoryGate struct {
	llm   adapter.ChatClient
	limit int

	mu      sync.Mutex
	store   repository.MemoryStore
	rebuild func() repository.MemoryStore
}

type GateOption func(*MemoryGate)

// WithRebuild installs a constructor for a fresh memory backend, used to
// recover once when the bound client has been torn down.
func WithRebuild(rebuild func() repository.MemoryStore) GateOption {
	return func(g *MemoryGate) {
		g.rebuild = rebuild
	}
}

func WithSearchLimit(limit int) GateOption {
	return func(g *MemoryGate) {
		g.limit = limit
	}
}

func NewMemoryGate(llm adapter.ChatClient, store repository.MemoryStore, opts ...GateOption) *MemoryGate {
	g := &MemoryGate{
		llm:   llm,
		store: store,
		limit: defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Retrieve queries memories relevant to the pending input and renders them as
// a bounded context block. Any failure degrades to an empty context; a stale
// backend client is rebuilt and retried exactly once.
func (g *MemoryGate) Retrieve(ctx context.Context, userID, input string) string {
	logger := logging.From(ctx)

	embedding, err := g.llm.Embedding(ctx, input)
	if err != nil {
		logger.Warn("memory retrieval skipped, embedding failed", "user_id", userID, "error", err)
		return ""
	}

	records, err := g.search(ctx, userID, embedding)
	if err != nil && isStaleBackend(err) && g.rebuild != nil {
		logger.Warn("memory backend stale, rebuilding client", "user_id", userID, "error", err)
		g.mu.Lock()
		g.store = g.rebuild()
		g.mu.Unlock()
		records, err = g.search(ctx, userID, embedding)
	}
	if err != nil {
		logger.Warn("memory retrieval failed", "user_id", userID, "error", err)
		return ""
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		if content := strings.TrimSpace(rec.Content); content != "" {
			lines = append(lines, "- "+content)
		}
	}
	return truncateContext(strings.Join(lines, "\n"))
}

// ScheduleWrite records the completed exchange in the background. Failures
// are logged, never surfaced, never retried.
func (g *MemoryGate) ScheduleWrite(userID, userText, assistantText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		logger := logging.Default()

		content := "User: " + userText
		if assistantText != "" {
			content += "\nAssistant: " + assistantText
		}

		embedding, err := g.llm.Embedding(ctx, content)
		if err != nil {
			logger.Warn("memory write skipped, embedding failed", "user_id", userID, "error", err)
			return
		}

		rec := model.MemoryRecord{
			ID:        model.NewMemoryID(),
			UserID:    userID,
			Content:   content,
			Metadata:  map[string]string{"source": "conversation"},
			Embedding: embedding,
			CreatedAt: time.Now(),
		}

		g.mu.Lock()
		store := g.store
		g.mu.Unlock()

		if err := store.Put(ctx, rec); err != nil {
			logger.Warn("memory write failed", "user_id", userID, "error", err)
		}
	}()
}

func (g *MemoryGate) search(ctx context.Context, userID string, embedding []float32) ([]model.MemoryRecord, error) {
	g.mu.Lock()
	store := g.store
	g.mu.Unlock()
	return store.Search(ctx, userID, embedding, g.limit)
}

// isStaleBackend recognizes the failure of a client whose underlying network
// loop was torn down, the only condition worth a rebuild-and-retry.
func isStaleBackend(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "client is closed") || strings.Contains(msg, "connection pool closed")
}

// truncateContext bounds a context block to at most maxContextLines non-empty
// lines and maxContextChars characters, marking any trim.
func truncateContext(s string) string {
	if s == "" {
		return ""
	}

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	trimmed := false
	if len(lines) > maxContextLines {
		lines = lines[:maxContextLines]
		trimmed = true
	}

	out := strings.Join(lines, "\n")
	if utf8.RuneCountInString(out) > maxContextChars {
		runes := []rune(out)
		out = string(runes[:maxContextChars])
		trimmed = true
	}
	if trimmed {
		out += truncationMark
	}
	return out
}
