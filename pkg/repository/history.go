package repository

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/windward-labs/tripsmith/pkg/model"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
)

const historyKeyPrefix = "chat_messages"

// HistoryStore is a per-user bounded ordered sequence of chat messages.
// The window slides: appending past the cap evicts the oldest messages.
type HistoryStore interface {
	List(ctx context.Context, userID string) ([]model.ChatMessage, error)
	Append(ctx context.Context, userID string, msgs ...model.ChatMessage) error
	Clear(ctx context.Context, userID string) error
}

// RedisHistoryStore keeps each user's history in a Redis list of JSON
// messages, trimmed to maxMessages on every append.
type RedisHistoryStore struct {
	client      *redis.Client
	maxMessages int
}

func NewRedisHistory(client *redis.Client, maxMessages int) *RedisHistoryStore {
	if maxMessages <= 0 {
		maxMessages = 40
	}
	return &RedisHistoryStore{
		client:      client,
		maxMessages: maxMessages,
	}
}

func (s *RedisHistoryStore) key(userID string) string {
	return historyKeyPrefix + ":" + userID
}

func (s *RedisHistoryStore) List(ctx context.Context, userID string) ([]model.ChatMessage, error) {
	vals, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chat history", goerr.V("user_id", userID))
	}

	msgs := make([]model.ChatMessage, 0, len(vals))
	for _, v := range vals {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			// A corrupt entry degrades to a shorter history
			logging.From(ctx).Warn("skipping malformed history entry", "user_id", userID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisHistoryStore) Append(ctx context.Context, userID string, msgs ...model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	payloads := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal chat message", goerr.V("message_id", msg.ID))
		}
		payloads = append(payloads, string(data))
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key(userID), payloads...)
	pipe.LTrim(ctx, s.key(userID), int64(-s.maxMessages), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "failed to append chat history", goerr.V("user_id", userID))
	}
	return nil
}

func (s *RedisHistoryStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return goerr.Wrap(err, "failed to clear chat history", goerr.V("user_id", userID))
	}
	return nil
}
