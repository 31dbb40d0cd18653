package auth

import (
	"errors"
	"fmt"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
)

// SigningContext separates API request signatures from coupon redemption
// signatures made with the same key type.
const SigningContext = "couponsd/api"

var ErrBadSignature = errors.New("invalid signature")

// Sign produces the X-Account-Signature bytes for msg.
func Sign(kp *couponsig.Keypair, msg []byte) ([]byte, error) {
	sig, err := kp.Sign([]byte(SigningContext), msg)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// Verify checks that sig is acct's signature of msg.
func Verify(acct account.ID, msg, sig []byte) error {
	pub, err := couponsig.ParsePublicKey(acct)
	if err != nil {
		return fmt.Errorf("account key: %w", err)
	}
	s, err := couponsig.ParseSignature(sig)
	if err != nil {
		return err
	}
	if !couponsig.Verify(pub, s, []byte(SigningContext), msg) {
		return ErrBadSignature
	}
	return nil
}
