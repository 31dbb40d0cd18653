package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

// KeyFmt is the Redis list holding the journal, keyed by store namespace.
const KeyFmt = "%s:journal"

// Redis appends events as JSON to a capped Redis list.
type Redis struct {
	rdb    *redis.Client
	key    string
	maxLen int64
}

func NewRedis(rdb *redis.Client, namespace string, maxLen int) *Redis {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Redis{rdb: rdb, key: fmt.Sprintf(KeyFmt, namespace), maxLen: int64(maxLen)}
}

// Record pushes ev and trims the list to its newest maxLen entries.
func (j *Redis) Record(ctx context.Context, ev ledger.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, j.key, string(raw))
		pipe.LTrim(ctx, j.key, -j.maxLen, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

func (j *Redis) Recent(ctx context.Context, n int) ([]ledger.Event, error) {
	if n <= 0 {
		return []ledger.Event{}, nil
	}
	items, err := j.rdb.LRange(ctx, j.key, -int64(n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	out := make([]ledger.Event, 0, len(items))
	for _, item := range items {
		var ev ledger.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
