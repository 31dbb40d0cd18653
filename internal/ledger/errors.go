package ledger

import "errors"

var (
	ErrAccessOwner         = errors.New("ledger: caller is not the owner")
	ErrInsufficientBalance = errors.New("ledger: ledger balance not enough")
	ErrInvalidCoupon       = errors.New("ledger: invalid coupon key")
	ErrInvalidSignature    = errors.New("ledger: invalid coupon signature")
	ErrVerifyFailed        = errors.New("ledger: signature verification failed")
	ErrCouponAlreadyExists = errors.New("ledger: coupon already exists")
	ErrCouponAlreadyBurned = errors.New("ledger: coupon already burned")
	ErrCouponNotFound      = errors.New("ledger: coupon not found")
	ErrTransferFailed      = errors.New("ledger: transfer failed")
	ErrBatchTooLarge       = errors.New("ledger: batch exceeds capacity")
)

// Code maps an operation result to a stable identifier for transports and
// metrics. Errors outside the ledger taxonomy map to "internal".
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAccessOwner):
		return "access_owner"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidCoupon):
		return "invalid_coupon"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrVerifyFailed):
		return "verify_failed"
	case errors.Is(err, ErrCouponAlreadyExists):
		return "coupon_already_exists"
	case errors.Is(err, ErrCouponAlreadyBurned):
		return "coupon_already_burned"
	case errors.Is(err, ErrCouponNotFound):
		return "coupon_not_found"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrBatchTooLarge):
		return "batch_too_large"
	default:
		return "internal"
	}
}

// slotError reports whether err is a per-coupon outcome that a batch routes
// into its declined set rather than failing the whole call.
func slotError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrCouponAlreadyExists) ||
		errors.Is(err, ErrCouponAlreadyBurned) ||
		errors.Is(err, ErrCouponNotFound)
}
