package ledger

import (
	"bytes"
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

// Report is a consistent snapshot of the ledger's bookkeeping.
type Report struct {
	OpenCoupons int
	// Pending counts redemptions whose settlement never committed.
	Pending     int
	Reserved    *uint256.Int
	Sum         *uint256.Int
	Balance     *uint256.Int
	Violations  []string
}

func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Audit walks every open coupon and checks the reserved total against the
// entries and the host balance.
func (l *Ledger) Audit(ctx context.Context) (*Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(ctx, l.store)
	reserved, err := tx.amounts().reserved()
	if err != nil {
		return nil, err
	}
	balance, err := l.host.Balance(ctx, l.id)
	if err != nil {
		return nil, fmt.Errorf("read ledger balance: %w", err)
	}

	r := &Report{Reserved: reserved, Sum: new(uint256.Int), Balance: balance}
	var open []account.ID
	err = l.store.Scan(ctx, amountPrefix, func(key, value []byte) error {
		id, err := account.Parse(string(bytes.TrimPrefix(key, amountPrefix)))
		if err != nil {
			r.Violations = append(r.Violations, fmt.Sprintf("malformed amount key %q", key))
			return nil
		}
		amount := decodeAmount(value)
		if _, overflow := r.Sum.AddOverflow(r.Sum, amount); overflow {
			r.Violations = append(r.Violations, "sum of coupon amounts overflows")
		}
		open = append(open, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan coupons: %w", err)
	}
	r.OpenCoupons = len(open)

	err = l.store.Scan(ctx, pendingPrefix, func(key, value []byte) error {
		r.Pending++
		r.Violations = append(r.Violations, fmt.Sprintf("coupon %s redemption of %s left pending",
			bytes.TrimPrefix(key, pendingPrefix), decodeAmount(value).Dec()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending: %w", err)
	}

	for _, id := range open {
		burned, err := tx.burns().isBurned(id)
		if err != nil {
			return nil, err
		}
		if burned {
			r.Violations = append(r.Violations, fmt.Sprintf("coupon %s is both open and burned", id.Hex()))
		}
	}
	if !r.Sum.Eq(reserved) {
		r.Violations = append(r.Violations, fmt.Sprintf("reserved total %s != sum of entries %s", reserved.Dec(), r.Sum.Dec()))
	}
	if balance.Lt(reserved) {
		r.Violations = append(r.Violations, fmt.Sprintf("reserved total %s exceeds balance %s", reserved.Dec(), balance.Dec()))
	}

	l.metrics.SetReserved(reserved)
	l.metrics.SetBalance(balance)
	l.metrics.SetOpenCoupons(r.OpenCoupons)
	return r, nil
}
