// Package couponsig implements the context-bound sr25519 signatures that
// authorize coupon redemption.
//
// The signing transcript is the schnorrkel signing context: the context label
// is the ledger's own 32-byte identity, the message is the receiver's 32-byte
// identity. Neither the amount nor the coupon id is signed; the amount is
// looked up by the ledger and the coupon id is the verification key.
package couponsig

import (
	"errors"
	"fmt"
	"strings"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

const (
	SignatureSize = 64
	SecretSize    = 32
)

var (
	ErrInvalidKey       = errors.New("couponsig: invalid public key")
	ErrInvalidSignature = errors.New("couponsig: invalid signature encoding")
	ErrInvalidSecret    = errors.New("couponsig: invalid secret key")
)

// Keypair is a coupon's mini secret key and the public id derived from it.
type Keypair struct {
	Secret [SecretSize]byte
	Public account.ID

	sk *schnorrkel.SecretKey
}

// GenerateKeypair creates a fresh random coupon key.
func GenerateKeypair() (*Keypair, error) {
	msk, err := schnorrkel.GenerateMiniSecretKey()
	if err != nil {
		return nil, fmt.Errorf("generate mini secret: %w", err)
	}
	return KeypairFromSecret(msk.Encode())
}

// KeypairFromSecret expands a 32-byte mini secret in ed25519 mode, matching
// the keys produced by the substrate tooling.
func KeypairFromSecret(secret [SecretSize]byte) (*Keypair, error) {
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	sk := msk.ExpandEd25519()
	pub, err := sk.Public()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return &Keypair{Secret: secret, Public: pub.Encode(), sk: sk}, nil
}

// ParseSecret decodes a 0x-prefixed 32-byte hex mini secret.
func ParseSecret(s string) ([SecretSize]byte, error) {
	var out [SecretSize]byte
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		return out, fmt.Errorf("%w: missing 0x prefix", ErrInvalidSecret)
	}
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) != SecretSize {
		return out, fmt.Errorf("%w: want %d hex bytes", ErrInvalidSecret, SecretSize)
	}
	copy(out[:], raw)
	return out, nil
}

// Sign signs msg under the given signing context.
func (k *Keypair) Sign(context, msg []byte) ([SignatureSize]byte, error) {
	sig, err := k.sk.Sign(schnorrkel.NewSigningContext(context, msg))
	if err != nil {
		return [SignatureSize]byte{}, fmt.Errorf("sign: %w", err)
	}
	return sig.Encode(), nil
}

// SignRedemption produces the signature a receiver presents to redeem the
// coupon held by k on the given ledger.
func (k *Keypair) SignRedemption(ledger, receiver account.ID) ([SignatureSize]byte, error) {
	return k.Sign(ledger.Bytes(), receiver.Bytes())
}

// ParsePublicKey decodes a coupon id as a ristretto255 point.
func ParsePublicKey(id account.ID) (*schnorrkel.PublicKey, error) {
	pub := new(schnorrkel.PublicKey)
	if err := pub.Decode(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return pub, nil
}

// ParseSignature decodes a 64-byte schnorrkel signature.
func ParseSignature(b []byte) (*schnorrkel.Signature, error) {
	if len(b) != SignatureSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(b))
	}
	var in [SignatureSize]byte
	copy(in[:], b)
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of msg under context by pub.
func Verify(pub *schnorrkel.PublicKey, sig *schnorrkel.Signature, context, msg []byte) bool {
	ok, err := pub.Verify(sig, schnorrkel.NewSigningContext(context, msg))
	return err == nil && ok
}

// VerifyRedemption runs the full parse-and-verify path for a redemption
// signature. The ledger performs the same steps individually so it can
// report each failure separately.
func VerifyRedemption(coupon account.ID, sig []byte, ledger, receiver account.ID) (bool, error) {
	pub, err := ParsePublicKey(coupon)
	if err != nil {
		return false, err
	}
	s, err := ParseSignature(sig)
	if err != nil {
		return false, err
	}
	return Verify(pub, s, ledger.Bytes(), receiver.Bytes()), nil
}
