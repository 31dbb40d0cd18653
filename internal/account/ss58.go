package account

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultPrefix is the generic Substrate network prefix.
const DefaultPrefix uint8 = 42

var ss58Pre = []byte("SS58PRE")

// EncodeSS58 renders id as an SS58 address with a single-byte network prefix.
func EncodeSS58(id ID, prefix uint8) string {
	data := make([]byte, 0, 1+Size+2)
	data = append(data, prefix)
	data = append(data, id[:]...)
	sum := ss58Checksum(data)
	data = append(data, sum[:2]...)
	return base58.Encode(data)
}

// DecodeSS58 parses a 32-byte-payload SS58 address. Only the simple
// single-byte prefix format (0..63) is supported.
func DecodeSS58(s string) (ID, uint8, error) {
	raw := base58.Decode(s)
	if len(raw) != 1+Size+2 {
		return ID{}, 0, fmt.Errorf("%w: bad ss58 length %d", ErrInvalidID, len(raw))
	}
	prefix := raw[0]
	if prefix > 63 {
		return ID{}, 0, fmt.Errorf("%w: unsupported ss58 prefix %d", ErrInvalidID, prefix)
	}
	sum := ss58Checksum(raw[:1+Size])
	if !bytes.Equal(sum[:2], raw[1+Size:]) {
		return ID{}, 0, fmt.Errorf("%w: ss58 checksum mismatch", ErrInvalidID)
	}
	var id ID
	copy(id[:], raw[1:1+Size])
	return id, prefix, nil
}

func ss58Checksum(data []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Pre)+len(data))
	buf = append(buf, ss58Pre...)
	buf = append(buf, data...)
	return blake2b.Sum512(buf)
}
