package command_history

import (
	"context"
	"fmt"

	"canopus/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps the log in a capped redis list. The client is owned by the
// caller.
type RedisStore struct {
	client     *redis.Client
	key        string
	maxEntries int
	cipher     Cipher
}

type RedisStoreConfig struct {
	Client     *redis.Client
	Key        string
	MaxEntries int
	Cipher     Cipher
}

func NewRedisStore(cfg *RedisStoreConfig) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("client is nil")
	}

	if cfg.Key == "" {
		return nil, fmt.Errorf("key is empty")
	}

	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultSize
	}

	return &RedisStore{
		client:     cfg.Client,
		key:        cfg.Key,
		maxEntries: maxEntries,
		cipher:     cfg.Cipher,
	}, nil
}

func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	data, err := encodeEntry(entry, s.cipher)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, int64(-s.maxEntries), -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context) ([]Entry, error) {
	values, err := s.client.LRange(ctx, s.key, int64(-s.maxEntries), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	entries := make([]Entry, 0, len(values))

	for _, value := range values {
		entry, err := decodeEntry([]byte(value), s.cipher)
		if err != nil {
			logger.Warn("Skipping unreadable history entry", zap.String("key", s.key), zap.Error(err))
			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *RedisStore) Close() error {
	return nil
}
