package ledger

import (
	"errors"
	"fmt"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

var errNoOwner = errors.New("ledger: owner not initialised")

type ownershipGuard struct{ tx *txn }

func (g ownershipGuard) owner() (account.ID, error) {
	v, ok, err := g.tx.get(ownerKey)
	if err != nil {
		return account.ID{}, fmt.Errorf("read owner: %w", err)
	}
	if !ok {
		return account.ID{}, errNoOwner
	}
	return account.FromBytes(v)
}

func (g ownershipGuard) requireOwner(caller account.ID) error {
	owner, err := g.owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrAccessOwner
	}
	return nil
}

func (g ownershipGuard) transfer(caller, newOwner account.ID) error {
	if err := g.requireOwner(caller); err != nil {
		return err
	}
	g.tx.put(ownerKey, newOwner.Bytes())
	return nil
}
