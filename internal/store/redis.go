package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kantinpay/kantin/ledger/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the whole card set as one JSON value under a single key.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisClient works with both single nodes and clusters.
func NewRedisClient(addrs []string, password string) redis.UniversalClient {
	if len(addrs) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     addrs[0],
		Password: password,
		DB:       0,
	})
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = "kantin:cards"
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]models.Card, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Card{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}
	cards := []models.Card{}
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", s.key, ErrCorrupt, err)
	}
	return cards, nil
}

func (s *RedisStore) Save(ctx context.Context, cards []models.Card) error {
	if cards == nil {
		cards = []models.Card{}
	}
	raw, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("encoding cards: %w", err)
	}
	// no expiry: the set lives until the next save
	return s.client.Set(ctx, s.key, raw, 0).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
