package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

// burnRegistry is the set of permanently spent coupons. Burned entries are never
// removed.
//
// A coupon whose payout is in flight carries a pending marker holding its
// amount. Pending coupons count as burned until the redemption settles.
type burnRegistry struct{ tx *txn }

func (b burnRegistry) markBurned(id account.ID) { b.tx.put(burnedKey(id), burnedMarker) }

func (b burnRegistry) markPending(id account.ID, amount *uint256.Int) {
	b.tx.put(pendingKey(id), encodeAmount(amount))
}

func (b burnRegistry) clearPending(id account.ID) { b.tx.del(pendingKey(id)) }

func (b burnRegistry) isBurned(id account.ID) (bool, error) {
	_, ok, err := b.tx.get(burnedKey(id))
	if err != nil {
		return false, fmt.Errorf("read burned flag: %w", err)
	}
	if ok {
		return true, nil
	}
	_, ok, err = b.tx.get(pendingKey(id))
	if err != nil {
		return false, fmt.Errorf("read pending flag: %w", err)
	}
	return ok, nil
}
