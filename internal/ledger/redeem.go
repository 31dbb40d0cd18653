package ledger

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
)

// activate runs the redemption checks in their fixed order and pays out only
// when all of them pass.
//
// The coupon is released and marked pending in one commit before the host
// transfer, so a store failure can never leave a paid coupon open. After the
// transfer a second commit either burns the coupon or, if the transfer
// failed, reopens it.
func (l *Ledger) activate(ctx context.Context, receiver, coupon account.ID, sig []byte) (*uint256.Int, error) {
	tx := newTxn(ctx, l.store)

	amount, ok, err := tx.amounts().get(coupon)
	if err != nil {
		return nil, err
	}
	burned, err := tx.burns().isBurned(coupon)
	if err != nil {
		return nil, err
	}
	// A redeemed coupon has no amount entry left; it still reports as burned.
	if !ok && !burned {
		return nil, ErrCouponNotFound
	}
	if burned {
		return nil, ErrCouponAlreadyBurned
	}

	pub, err := couponsig.ParsePublicKey(coupon)
	if err != nil {
		return nil, ErrInvalidCoupon
	}
	s, err := couponsig.ParseSignature(sig)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if !couponsig.Verify(pub, s, l.id.Bytes(), receiver.Bytes()) {
		return nil, ErrVerifyFailed
	}

	balance, err := l.host.Balance(ctx, l.id)
	if err != nil {
		return nil, fmt.Errorf("read ledger balance: %w", err)
	}
	if balance.Lt(amount) {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.amounts().release(coupon); err != nil {
		return nil, err
	}
	tx.burns().markPending(coupon, amount)
	if err := tx.commit(); err != nil {
		return nil, err
	}

	if err := l.host.Transfer(ctx, l.id, receiver, amount); err != nil {
		l.reopen(ctx, coupon, amount)
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	done := newTxn(ctx, l.store)
	done.burns().markBurned(coupon)
	done.burns().clearPending(coupon)
	if err := done.commit(); err != nil {
		// The pending marker already blocks another payout.
		l.log.Error("redemption paid but burn not finalised; coupon stays pending",
			zap.String("coupon", coupon.Hex()),
			zap.String("receiver", receiver.Hex()),
			zap.String("amount", amount.Dec()),
			zap.Error(err),
		)
	}
	return amount, nil
}

// reopen restores a pending coupon after its transfer failed.
func (l *Ledger) reopen(ctx context.Context, coupon account.ID, amount *uint256.Int) {
	tx := newTxn(ctx, l.store)
	tx.burns().clearPending(coupon)
	_, err := tx.amounts().insert(coupon, amount)
	if err == nil {
		err = tx.commit()
	}
	if err != nil {
		l.log.Error("coupon left pending after failed transfer",
			zap.String("coupon", coupon.Hex()),
			zap.String("amount", amount.Dec()),
			zap.Error(err),
		)
	}
}
