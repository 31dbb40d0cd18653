package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

// amountLedger maps open coupons to their reserved amount and keeps the
// reserved total equal to the sum of all entries.
type amountLedger struct{ tx *txn }

func (a amountLedger) get(id account.ID) (*uint256.Int, bool, error) {
	v, ok, err := a.tx.get(amountKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("read amount: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return decodeAmount(v), true, nil
}

func (a amountLedger) reserved() (*uint256.Int, error) {
	v, ok, err := a.tx.get(reservedKey)
	if err != nil {
		return nil, fmt.Errorf("read reserved: %w", err)
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return decodeAmount(v), nil
}

// insert reserves amount for id. The caller has already checked spare funds.
func (a amountLedger) insert(id account.ID, amount *uint256.Int) (*uint256.Int, error) {
	_, exists, err := a.get(id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCouponAlreadyExists
	}
	reserved, err := a.reserved()
	if err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(reserved, amount)
	if overflow {
		return nil, ErrInsufficientBalance
	}
	a.tx.put(amountKey(id), encodeAmount(amount))
	a.tx.put(reservedKey, encodeAmount(total))
	return amount.Clone(), nil
}

// release removes the entry for id and returns its amount to the spare pool.
func (a amountLedger) release(id account.ID) (*uint256.Int, error) {
	amount, ok, err := a.get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCouponNotFound
	}
	reserved, err := a.reserved()
	if err != nil {
		return nil, err
	}
	if reserved.Lt(amount) {
		return nil, fmt.Errorf("reserved total %s below entry %s for %s", reserved.Dec(), amount.Dec(), id.Hex())
	}
	a.tx.del(amountKey(id))
	a.tx.put(reservedKey, encodeAmount(new(uint256.Int).Sub(reserved, amount)))
	return amount, nil
}
