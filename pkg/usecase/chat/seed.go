package chat

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/windward-labs/tripsmith/pkg/adapter"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// SeedFile pre-loads long-term memories for users before their first real
// interaction. YAML and JSON are both accepted.
type SeedFile struct {
	UserMemories map[string][]SeedMemory `yaml:"user_memories" json:"user_memories"`
}

type SeedMemory struct {
	Insight string `yaml:"insight" json:"insight"`
}

func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read seed file", goerr.V("path", path))
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse seed file", goerr.V("path", path))
	}
	return &seed, nil
}

// SeedMemories inserts every insight as a memory record tagged with seed
// provenance. A failure for one user is logged and skipped; it never aborts
// seeding for the others.
func SeedMemories(ctx context.Context, llm adapter.ChatClient, store repository.MemoryStore, seed *SeedFile) {
	logger := logging.From(ctx)

	for userID, memories := range seed.UserMemories {
		seeded := 0
		for _, mem := range memories {
			if mem.Insight == "" {
				continue
			}

			embedding, err := llm.Embedding(ctx, mem.Insight)
			if err != nil {
				logger.Warn("skipping seed user, embedding failed", "user_id", userID, "error", err)
				break
			}

			rec := model.MemoryRecord{
				ID:        model.NewMemoryID(),
				UserID:    userID,
				Content:   mem.Insight,
				Metadata:  map[string]string{"source": "seed"},
				Embedding: embedding,
				CreatedAt: time.Now(),
			}
			if err := store.Put(ctx, rec); err != nil {
				logger.Warn("skipping seed user, memory write failed", "user_id", userID, "error", err)
				break
			}
			seeded++
		}
		if seeded > 0 {
			logger.Info("seeded user memories", "user_id", userID, "count", seeded)
		}
	}
}
