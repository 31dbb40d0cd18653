package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

const (
	balanceKeyFmt = "%s:bank:balance:%s" // namespace, account hex
	maxTxRetries  = 16
)

// Redis keeps balances as decimal strings and updates them with optimistic
// WATCH/MULTI transactions.
type Redis struct {
	rdb *redis.Client
	ns  string
}

func NewRedis(rdb *redis.Client, namespace string) *Redis {
	return &Redis{rdb: rdb, ns: namespace}
}

func (b *Redis) balanceKey(acct account.ID) string {
	return fmt.Sprintf(balanceKeyFmt, b.ns, acct.Hex())
}

func (b *Redis) Balance(ctx context.Context, acct account.ID) (*uint256.Int, error) {
	return readBalance(ctx, b.rdb, b.balanceKey(acct))
}

// Mint credits amount to acct.
func (b *Redis) Mint(ctx context.Context, acct account.ID, amount *uint256.Int) error {
	key := b.balanceKey(acct)
	return b.watch(ctx, func(tx *redis.Tx) error {
		bal, err := readBalance(ctx, tx, key)
		if err != nil {
			return err
		}
		sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
		if overflow {
			return ErrOverflow
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, sum.Dec(), 0)
			return nil
		})
		return err
	}, key)
}

// Transfer moves amount from one account to another, or fails having moved
// nothing.
func (b *Redis) Transfer(ctx context.Context, from, to account.ID, amount *uint256.Int) error {
	fromKey, toKey := b.balanceKey(from), b.balanceKey(to)
	return b.watch(ctx, func(tx *redis.Tx) error {
		src, err := readBalance(ctx, tx, fromKey)
		if err != nil {
			return err
		}
		if src.Lt(amount) {
			return ErrInsufficientFunds
		}
		if from == to {
			return nil
		}
		dst, err := readBalance(ctx, tx, toKey)
		if err != nil {
			return err
		}
		newDst, overflow := new(uint256.Int).AddOverflow(dst, amount)
		if overflow {
			return ErrOverflow
		}
		newSrc := new(uint256.Int).Sub(src, amount)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fromKey, newSrc.Dec(), 0)
			pipe.Set(ctx, toKey, newDst.Dec(), 0)
			return nil
		})
		return err
	}, fromKey, toKey)
}

func (b *Redis) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := b.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readBalance(ctx context.Context, g getter, key string) (*uint256.Int, error) {
	s, err := g.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read balance %s: %w", key, err)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance %s: %w", key, err)
	}
	return v, nil
}
