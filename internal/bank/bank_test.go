package bank

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

type book interface {
	Balance(ctx context.Context, acct account.ID) (*uint256.Int, error)
	Mint(ctx context.Context, acct account.ID, amount *uint256.Int) error
	Transfer(ctx context.Context, from, to account.ID, amount *uint256.Int) error
}

var (
	alice = account.ID{0xa1}
	bob   = account.ID{0xb0}
)

func books(t *testing.T) map[string]book {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return map[string]book{
		"memory": NewMemory(),
		"redis":  NewRedis(rdb, "test"),
	}
}

func balanceOf(t *testing.T, b book, acct account.ID) uint64 {
	t.Helper()
	v, err := b.Balance(context.Background(), acct)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return v.Uint64()
}

func mint(t *testing.T, b book, acct account.ID, amount uint64) {
	t.Helper()
	if err := b.Mint(context.Background(), acct, uint256.NewInt(amount)); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func TestBank_UnknownAccountIsZero(t *testing.T) {
	for name, b := range books(t) {
		t.Run(name, func(t *testing.T) {
			if got := balanceOf(t, b, alice); got != 0 {
				t.Fatalf("balance = %d, want 0", got)
			}
		})
	}
}

func TestBank_MintAndTransfer(t *testing.T) {
	ctx := context.Background()
	for name, b := range books(t) {
		t.Run(name, func(t *testing.T) {
			mint(t, b, alice, 1000)
			if err := b.Transfer(ctx, alice, bob, uint256.NewInt(400)); err != nil {
				t.Fatalf("transfer: %v", err)
			}
			if a, bb := balanceOf(t, b, alice), balanceOf(t, b, bob); a != 600 || bb != 400 {
				t.Fatalf("balances = %d/%d, want 600/400", a, bb)
			}
		})
	}
}

func TestBank_TransferInsufficientChangesNothing(t *testing.T) {
	ctx := context.Background()
	for name, b := range books(t) {
		t.Run(name, func(t *testing.T) {
			mint(t, b, alice, 10)
			err := b.Transfer(ctx, alice, bob, uint256.NewInt(11))
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("expected ErrInsufficientFunds, got %v", err)
			}
			if a, bb := balanceOf(t, b, alice), balanceOf(t, b, bob); a != 10 || bb != 0 {
				t.Fatalf("balances = %d/%d, want 10/0", a, bb)
			}
		})
	}
}

func TestBank_MintOverflow(t *testing.T) {
	ctx := context.Background()
	maxAmount := new(uint256.Int).SetAllOne()
	for name, b := range books(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Mint(ctx, alice, maxAmount); err != nil {
				t.Fatalf("mint max: %v", err)
			}
			if err := b.Mint(ctx, alice, uint256.NewInt(1)); !errors.Is(err, ErrOverflow) {
				t.Fatalf("expected ErrOverflow, got %v", err)
			}
		})
	}
}

func TestRedis_ConcurrentTransfersConserveFunds(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedis(rdb, "test")
	ctx := context.Background()
	mint(t, b, alice, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Transfer(ctx, alice, bob, uint256.NewInt(1))
		}()
	}
	wg.Wait()

	if total := balanceOf(t, b, alice) + balanceOf(t, b, bob); total != 100 {
		t.Fatalf("total = %d, want 100", total)
	}
}
