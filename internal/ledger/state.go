package ledger

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/kvstore"
)

var (
	amountPrefix  = []byte("coupon/amount/")
	burnedPrefix  = []byte("coupon/burned/")
	pendingPrefix = []byte("coupon/pending/")
	reservedKey   = []byte("ledger/reserved")
	ownerKey      = []byte("ledger/owner")
	burnedMarker  = []byte{0x01}
)

func amountKey(id account.ID) []byte { return append(append([]byte{}, amountPrefix...), id.Hex()...) }
func burnedKey(id account.ID) []byte { return append(append([]byte{}, burnedPrefix...), id.Hex()...) }
func pendingKey(id account.ID) []byte {
	return append(append([]byte{}, pendingPrefix...), id.Hex()...)
}

func encodeAmount(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func decodeAmount(b []byte) *uint256.Int { return new(uint256.Int).SetBytes(b) }

// txn stages the writes of one ledger operation over the store. Reads see the
// staged writes; nothing reaches the store until commit.
type txn struct {
	ctx   context.Context
	store kvstore.Store
	dirty map[string]kvstore.Op
	order []string
}

func newTxn(ctx context.Context, store kvstore.Store) *txn {
	return &txn{ctx: ctx, store: store, dirty: make(map[string]kvstore.Op)}
}

func (t *txn) get(key []byte) ([]byte, bool, error) {
	if op, ok := t.dirty[string(key)]; ok {
		if op.Delete {
			return nil, false, nil
		}
		return op.Value, true, nil
	}
	return t.store.Get(t.ctx, key)
}

func (t *txn) stage(op kvstore.Op) {
	k := string(op.Key)
	if _, ok := t.dirty[k]; !ok {
		t.order = append(t.order, k)
	}
	t.dirty[k] = op
}

func (t *txn) put(key, value []byte) { t.stage(kvstore.Put(key, value)) }
func (t *txn) del(key []byte)        { t.stage(kvstore.Del(key)) }

func (t *txn) commit() error {
	if len(t.order) == 0 {
		return nil
	}
	ops := make([]kvstore.Op, 0, len(t.order))
	for _, k := range t.order {
		ops = append(ops, t.dirty[k])
	}
	if err := t.store.Apply(t.ctx, ops); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *txn) amounts() amountLedger     { return amountLedger{t} }
func (t *txn) burns() burnRegistry       { return burnRegistry{t} }
func (t *txn) ownership() ownershipGuard { return ownershipGuard{t} }
