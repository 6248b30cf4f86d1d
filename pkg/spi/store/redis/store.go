package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/username/archflow/pkg/core"
	"github.com/username/archflow/pkg/spi"
)

type Store struct {
	client *redis.Client
	prefix string
}

// Ensure Store implements spi.CursorStore
var _ spi.CursorStore = (*Store)(nil)

func NewStore(addr string, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{
		client: rdb,
		prefix: "archflow:",
	}, nil
}

func (s *Store) Load(ctx context.Context) (*core.Cursor, error) {
	// key: archflow:cursor
	val, err := s.client.Get(ctx, s.prefix+"cursor").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cursor core.Cursor
	if err := json.Unmarshal([]byte(val), &cursor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	return &cursor, nil
}

func (s *Store) Save(ctx context.Context, cursor *core.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}

	// SET is atomic; there is a single writer, so no transaction needed.
	return s.client.Set(ctx, s.prefix+"cursor", data, 0).Err()
}
