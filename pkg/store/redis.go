package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxUpdateRetries = 5

// RedisConfig describes the Redis connection of a RedisStore.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each record as a JSON string with a secondary key from
// order hash to record id.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and checks the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fusion-swap:orders"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) recordKey(id string) string { return s.prefix + ":record:" + id }
func (s *RedisStore) hashKey(hash string) string { return s.prefix + ":hash:" + hash }
func (s *RedisStore) idsKey() string             { return s.prefix + ":ids" }

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", rec.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
		pipe.SAdd(ctx, s.idsKey(), rec.ID)
		if rec.OrderHash != "" {
			pipe.Set(ctx, s.hashKey(rec.OrderHash), rec.ID, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save order %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	return s.get(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, id string) (*Record, error) {
	data, err := c.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) FindByOrderHash(ctx context.Context, orderHash string) (*Record, error) {
	id, err := s.client.Get(ctx, s.hashKey(orderHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("order %s: %w", orderHash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("look up order %s: %w", orderHash, err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) List(ctx context.Context) ([]*Record, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sortNewestFirst(records)
	return records, nil
}

// Update uses WATCH so concurrent writers never lose an update.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Record) error) error {
	key := s.recordKey(id)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			rec, err := s.get(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			rec.ID = id
			rec.LastUpdated = time.Now().UTC()

			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal order %s: %w", id, err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				if rec.OrderHash != "" {
					pipe.Set(ctx, s.hashKey(rec.OrderHash), id, 0)
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update order %s: too much contention", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(id))
		pipe.SRem(ctx, s.idsKey(), id)
		if rec.OrderHash != "" {
			pipe.Del(ctx, s.hashKey(rec.OrderHash))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
