package bank

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

// Memory is an in-process balance book.
type Memory struct {
	mu       sync.Mutex
	balances map[account.ID]*uint256.Int
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[account.ID]*uint256.Int)}
}

func (m *Memory) Balance(_ context.Context, acct account.ID) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(acct).Clone(), nil
}

// SetBalance overwrites an account balance.
func (m *Memory) SetBalance(acct account.ID, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[acct] = amount.Clone()
}

func (m *Memory) Mint(_ context.Context, acct account.ID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, overflow := new(uint256.Int).AddOverflow(m.get(acct), amount)
	if overflow {
		return ErrOverflow
	}
	m.balances[acct] = sum
	return nil
}

func (m *Memory) Transfer(_ context.Context, from, to account.ID, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.get(from)
	if src.Lt(amount) {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	dst, overflow := new(uint256.Int).AddOverflow(m.get(to), amount)
	if overflow {
		return ErrOverflow
	}
	m.balances[from] = new(uint256.Int).Sub(src, amount)
	m.balances[to] = dst
	return nil
}

func (m *Memory) get(acct account.ID) *uint256.Int {
	if b, ok := m.balances[acct]; ok {
		return b
	}
	return new(uint256.Int)
}
