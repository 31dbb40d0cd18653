// Package account defines the 32-byte identity used for coupons, receivers,
// the ledger owner and the ledger itself, with SS58 and 0x-hex encodings.
package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Size is the byte length of an ID.
const Size = 32

var ErrInvalidID = errors.New("account: invalid identity")

// ID is an account identity. For coupons it is also the sr25519 public key
// that verifies the redemption signature.
type ID [Size]byte

// FromBytes copies b into an ID. b must be exactly Size bytes.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidID, Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Parse accepts either a 0x-prefixed hex string or an SS58 address.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw, err := hexutil.Decode("0x" + s[2:])
		if err != nil {
			return ID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		return FromBytes(raw)
	}
	id, _, err := DecodeSS58(s)
	return id, err
}

// MustParse is Parse for constants and tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) Bytes() []byte { return id[:] }

func (id ID) Hex() string { return hexutil.Encode(id[:]) }

func (id ID) IsZero() bool { return id == ID{} }

// String renders the generic-prefix SS58 address.
func (id ID) String() string { return EncodeSS58(id, DefaultPrefix) }

func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
