package watchlist

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/jsonx"
)

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// defaultConnectTimeout bounds the startup ping.
const defaultConnectTimeout = 5 * time.Second

type redisStore struct {
	client     *redis.Client
	key        string
	maxRetries int
}

// NewRedis constructs a redis-backed store. The list lives under one key as
// a JSON array so several instances can share it.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	connectTimeout := cfg.Redis.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:                  cfg.Redis.Addr,
		Username:              cfg.Redis.Username,
		Password:              cfg.Redis.Password,
		DB:                    cfg.Redis.DB,
		DialTimeout:           connectTimeout,
		ContextTimeoutEnabled: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	retries := cfg.Redis.MaxRetries
	if retries <= 0 {
		retries = 100
	}
	return &redisStore{client: client, key: key, maxRetries: retries}, nil
}

func (s *redisStore) read(ctx context.Context, c getter) ([]string, error) {
	raw, err := c.Get(ctx, s.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := jsonx.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return dedupe(list), nil
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	list, err := s.read(ctx, s.client)
	if err != nil {
		return nil, errors.Wrap(errors.KindWatchlist, "watchlist.list", "failed to read watch list", err)
	}
	return list, nil
}

func (s *redisStore) Contains(ctx context.Context, id string) (bool, error) {
	list, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(list, id), nil
}

// Toggle uses optimistic locking: the transaction is discarded when another
// writer touched the key after WATCH, and the update is retried.
func (s *redisStore) Toggle(ctx context.Context, id string) (bool, error) {
	var watching bool
	txf := func(tx *redis.Tx) error {
		list, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		var next []string
		next, watching = toggle(list, id)
		raw, err := jsonx.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, raw, 0)
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return watching, nil
		}
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, errors.Wrap(errors.KindWatchlist, "watchlist.toggle", "failed to update watch list", err)
	}
	return false, errors.New(errors.KindWatchlist, "watchlist.toggle", "watch list update kept conflicting")
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
