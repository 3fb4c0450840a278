package triage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by a KVStore when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KVStore is the key/value store used to memoize analyses.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisStore is a KVStore backed by go-redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// cacheKey derives a stable key from the fields that affect an analysis.
// Case and duplicate tokens do not change the key. Order does, since
// insight lists follow query order.
func cacheKey(q Query) string {
	tokens := distinctTokens(q.Symptoms)
	age := q.Age
	if age < 0 {
		age = 0
	}
	raw := strings.Join(tokens, ",") + "|" + strconv.Itoa(age)
	sum := sha256.Sum256([]byte(raw))
	return "analysis:" + hex.EncodeToString(sum[:])
}
