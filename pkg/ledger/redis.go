package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces ledger keys in a shared Redis database.
const keyPrefix = "extrepo:session:"

// RedisConfig configures the Redis ledger.
type RedisConfig struct {
	Addr     string        // host:port
	Password string        // optional
	DB       int           // database number
	TTL      time.Duration // entry lifetime; DefaultTTL if zero
}

// Redis is a Ledger backed by Redis. Each entry is a JSON string key with a
// TTL, so entries of processes that never released them expire on their own.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client. The ledger takes ownership and
// closes it in Close.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Register(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+e.SessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("register session %s: %w", e.SessionID, err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("release session %s: %w", sessionID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, sessionID string) (Entry, error) {
	data, err := r.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("parse entry: %w", err)
	}
	return e, nil
}

func (r *Redis) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", iter.Val(), err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Ledger = (*Redis)(nil)
