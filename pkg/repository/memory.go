package repository

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/windward-labs/tripsmith/pkg/model"
)

const memoryKeyPrefix = "memory"

// MemoryStore persists long-term semantic memory records and retrieves them
// by embedding similarity. Append-only from the core's perspective.
type MemoryStore interface {
	Put(ctx context.Context, rec model.MemoryRecord) error
	Search(ctx context.Context, userID string, embedding []float32, limit int) ([]model.MemoryRecord, error)
	Clear(ctx context.Context, userID string) error
}

// RedisMemoryStore keeps each user's records in a Redis hash keyed by record
// ID. Similarity ranking runs client-side over the user's records, which stay
// small enough per user for a linear scan.
type RedisMemoryStore struct {
	client *redis.Client
}

func NewRedisMemory(client *redis.Client) *RedisMemoryStore {
	return &RedisMemoryStore{client: client}
}

func (s *RedisMemoryStore) key(userID string) string {
	return memoryKeyPrefix + ":" + userID
}

func (s *RedisMemoryStore) Put(ctx context.Context, rec model.MemoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal memory record", goerr.V("memory_id", rec.ID))
	}

	if err := s.client.HSet(ctx, s.key(rec.UserID), string(rec.ID), string(data)).Err(); err != nil {
		return goerr.Wrap(err, "failed to store memory record",
			goerr.V("user_id", rec.UserID), goerr.V("memory_id", rec.ID))
	}
	return nil
}

func (s *RedisMemoryStore) Search(ctx context.Context, userID string, embedding []float32, limit int) ([]model.MemoryRecord, error) {
	vals, err := s.client.HVals(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory records", goerr.V("user_id", userID))
	}

	type scored struct {
		rec   model.MemoryRecord
		score float64
	}

	candidates := make([]scored, 0, len(vals))
	for _, v := range vals {
		var rec model.MemoryRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		candidates = append(candidates, scored{
			rec:   rec,
			score: cosineSimilarity(embedding, rec.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	records := make([]model.MemoryRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, c.rec)
	}
	return records, nil
}

func (s *RedisMemoryStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return goerr.Wrap(err, "failed to clear memory records", goerr.V("user_id", userID))
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
