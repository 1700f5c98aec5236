package chat_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
)

const seedYAML = `user_memories:
  alice:
    - insight: "Prefers aisle seats on long flights"
    - insight: "Allergic to shellfish"
  bob:
    - insight: "Travels with two kids under 10"
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeedFileYAML(t *testing.T) {
	seed, err := chat.LoadSeedFile(writeSeedFile(t, seedYAML))
	gt.NoError(t, err)
	gt.A(t, seed.UserMemories["alice"]).Length(2)
	gt.A(t, seed.UserMemories["bob"]).Length(1)
}

func TestLoadSeedFileJSON(t *testing.T) {
	seed, err := chat.LoadSeedFile(writeSeedFile(t, `{"user_memories":{"alice":[{"insight":"Loves museums"}]}}`))
	gt.NoError(t, err)
	gt.A(t, seed.UserMemories["alice"]).Length(1)
	gt.Equal(t, seed.UserMemories["alice"][0].Insight, "Loves museums")
}

func TestLoadSeedFileMissing(t *testing.T) {
	_, err := chat.LoadSeedFile(filepath.Join(t.TempDir(), "nope.yml"))
	gt.Error(t, err)
}

func TestSeedMemories(t *testing.T) {
	seed, err := chat.LoadSeedFile(writeSeedFile(t, seedYAML))
	gt.NoError(t, err)

	store := &memStore{}
	chat.SeedMemories(context.Background(), &scriptedLLM{}, store, seed)

	gt.A(t, store.records).Length(3)
	for _, rec := range store.records {
		gt.Equal(t, rec.Metadata["source"], "seed")
		gt.A(t, rec.Embedding).Length(3)
	}
}

func TestSeedMemoriesSkipsFailingUser(t *testing.T) {
	seed, err := chat.LoadSeedFile(writeSeedFile(t, seedYAML))
	gt.NoError(t, err)

	llm := &scriptedLLM{embedFn: func(text string) ([]float32, error) {
		if text == "Travels with two kids under 10" {
			return nil, goerr.New("embedding unavailable")
		}
		return []float32{0.1}, nil
	}}

	store := &memStore{}
	chat.SeedMemories(context.Background(), llm, store, seed)

	// bob fails, alice still seeded
	users := make(map[string]int)
	for _, rec := range store.records {
		users[rec.UserID]++
	}
	gt.Equal(t, users["alice"], 2)
	gt.Equal(t, users["bob"], 0)
}
