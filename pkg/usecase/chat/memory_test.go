package chat_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

func TestMemoryRetrieveTruncatesLines(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 20; i++ {
		store.records = append(store.records, model.MemoryRecord{
			ID:      model.NewMemoryID(),
			UserID:  "alice",
			Content: fmt.Sprintf("fact number %d", i),
		})
	}

	gate := chat.NewMemoryGate(&scriptedLLM{}, store, chat.WithSearchLimit(30))
	out := gate.Retrieve(context.Background(), "alice", "plan a trip")

	lines := strings.Split(strings.TrimSuffix(out, "…"), "\n")
	gt.True(t, len(lines) <= 12)
	gt.True(t, strings.HasSuffix(out, "…"))
}

func TestMemoryRetrieveTruncatesChars(t *testing.T) {
	store := &memStore{}
	store.records = append(store.records, model.MemoryRecord{
		ID:      model.NewMemoryID(),
		UserID:  "alice",
		Content: strings.Repeat("a", 3000),
	})

	gate := chat.NewMemoryGate(&scriptedLLM{}, store)
	out := gate.Retrieve(context.Background(), "alice", "plan a trip")

	gt.True(t, len(out) <= 2000+len("…"))
	gt.True(t, strings.HasSuffix(out, "…"))
}

func TestMemoryRetrieveTruncatesOnRuneBoundary(t *testing.T) {
	store := &memStore{}
	store.records = append(store.records, model.MemoryRecord{
		ID:      model.NewMemoryID(),
		UserID:  "alice",
		Content: "x" + strings.Repeat("あ", 3000),
	})

	gate := chat.NewMemoryGate(&scriptedLLM{}, store)
	out := gate.Retrieve(context.Background(), "alice", "plan a trip")

	gt.True(t, utf8.ValidString(out))
	gt.True(t, utf8.RuneCountInString(out) <= 2000+utf8.RuneCountInString("…"))
	gt.True(t, strings.HasSuffix(out, "…"))
}

func TestMemoryRetrieveEmptyWhenNoRecords(t *testing.T) {
	gate := chat.NewMemoryGate(&scriptedLLM{}, &memStore{})
	gt.Equal(t, gate.Retrieve(context.Background(), "alice", "plan a trip"), "")
}

func TestMemoryRetrieveDegradesOnEmbeddingFailure(t *testing.T) {
	llm := &scriptedLLM{embedFn: func(string) ([]float32, error) {
		return nil, goerr.New("embedding unavailable")
	}}
	gate := chat.NewMemoryGate(llm, &memStore{})
	gt.Equal(t, gate.Retrieve(context.Background(), "alice", "plan a trip"), "")
}

func TestMemoryRetrieveRebuildsStaleBackend(t *testing.T) {
	stale := &memStore{searchErr: goerr.New("redis: client is closed")}
	fresh := &memStore{records: []model.MemoryRecord{
		{ID: model.NewMemoryID(), UserID: "alice", Content: "prefers window seats"},
	}}

	rebuilt := 0
	gate := chat.NewMemoryGate(&scriptedLLM{}, stale, chat.WithRebuild(func() repository.MemoryStore {
		rebuilt++
		return fresh
	}))

	out := gate.Retrieve(context.Background(), "alice", "book a flight")
	gt.Equal(t, rebuilt, 1)
	gt.S(t, out).Contains("prefers window seats")
}

func TestMemoryRetrieveGivesUpAfterOneRebuild(t *testing.T) {
	stale := &memStore{searchErr: goerr.New("redis: client is closed")}

	rebuilt := 0
	gate := chat.NewMemoryGate(&scriptedLLM{}, stale, chat.WithRebuild(func() repository.MemoryStore {
		rebuilt++
		return stale
	}))

	gt.Equal(t, gate.Retrieve(context.Background(), "alice", "book a flight"), "")
	gt.Equal(t, rebuilt, 1)
}

func TestMemoryScheduleWrite(t *testing.T) {
	store := &memStore{put: make(chan model.MemoryRecord, 1)}
	gate := chat.NewMemoryGate(&scriptedLLM{}, store)

	gate.ScheduleWrite("alice", "Plan a trip to Lisbon", "Here is a draft itinerary.")

	select {
	case rec := <-store.put:
		gt.Equal(t, rec.UserID, "alice")
		gt.S(t, rec.Content).Contains("Plan a trip to Lisbon")
		gt.S(t, rec.Content).Contains("Here is a draft itinerary.")
		gt.Equal(t, rec.Metadata["source"], "conversation")
	case <-time.After(5 * time.Second):
		t.Fatal("background memory write never happened")
	}
}
