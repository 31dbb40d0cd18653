package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis stores every key under "<namespace>:" in a Redis database. Writes are
// applied inside MULTI/EXEC.
type Redis struct {
	rdb *redis.Client
	ns  string
}

func NewRedis(rdb *redis.Client, namespace string) *Redis {
	return &Redis{rdb: rdb, ns: namespace + ":"}
}

func (r *Redis) key(k []byte) string { return r.ns + string(k) }

func (r *Redis) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (r *Redis) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	pattern := escapeGlob(r.key(prefix)) + "*"
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range keys {
			v, err := r.rdb.Get(ctx, k).Bytes()
			if errors.Is(err, redis.Nil) {
				continue // removed since SCAN returned it
			}
			if err != nil {
				return fmt.Errorf("redis get %s: %w", k, err)
			}
			if err := fn([]byte(strings.TrimPrefix(k, r.ns)), v); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			if op.Delete {
				pipe.Del(ctx, r.key(op.Key))
			} else {
				pipe.Set(ctx, r.key(op.Key), op.Value, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (r *Redis) Close() error { return nil }

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
