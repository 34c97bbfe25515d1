package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each transcript as a JSON string value, so several
// clients can share it.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, documentID string) ([]Message, error) {
	raw, err := s.client.Get(ctx, Key(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("get chat history: %w", err)
	}
	return decodeMessages(raw)
}

func (s *RedisStore) Put(ctx context.Context, documentID string, messages []Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}
	if err := s.client.Set(ctx, Key(documentID), raw, 0).Err(); err != nil {
		return fmt.Errorf("set chat history: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, documentID string) error {
	if err := s.client.Del(ctx, Key(documentID)).Err(); err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return nil
}

func decodeMessages(raw []byte) ([]Message, error) {
	messages := []Message{}
	if len(raw) == 0 {
		return messages, nil
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	return messages, nil
}

var _ Store = (*RedisStore)(nil)
