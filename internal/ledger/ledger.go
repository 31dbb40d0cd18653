package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/kvstore"
	"github.com/0gfoundation/0g-coupon-ledger/internal/metrics"
)

const DefaultBatchCapacity = 5

// Host is the native balance book the ledger draws payouts from.
type Host interface {
	Balance(ctx context.Context, acct account.ID) (*uint256.Int, error)
	Transfer(ctx context.Context, from, to account.ID, amount *uint256.Int) error
}

type Config struct {
	// ID is the ledger's own account on the host and the signing context
	// coupon holders sign over.
	ID account.ID
	// Owner is written only when the store has no owner yet.
	Owner         account.ID
	BatchCapacity int
}

// Ledger serialises every public operation behind one mutex and commits each
// operation's writes in a single store apply.
type Ledger struct {
	mu       sync.Mutex
	id       account.ID
	capacity int
	store    kvstore.Store
	host     Host
	sink     EventSink
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// New opens the ledger over store, bootstrapping the owner on an empty store.
// sink and m may be nil.
func New(ctx context.Context, cfg Config, store kvstore.Store, host Host, sink EventSink, m *metrics.Metrics, log *zap.Logger) (*Ledger, error) {
	if cfg.ID.IsZero() {
		return nil, errors.New("ledger: id is required")
	}
	if cfg.BatchCapacity <= 0 {
		cfg.BatchCapacity = DefaultBatchCapacity
	}
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		id:       cfg.ID,
		capacity: cfg.BatchCapacity,
		store:    store,
		host:     host,
		sink:     sink,
		metrics:  m,
		log:      log,
		now:      defaultClock,
	}

	tx := newTxn(ctx, store)
	owner, err := tx.ownership().owner()
	switch {
	case errors.Is(err, errNoOwner):
		if cfg.Owner.IsZero() {
			return nil, errors.New("ledger: owner is required for an empty store")
		}
		tx.put(ownerKey, cfg.Owner.Bytes())
		tx.put(reservedKey, encodeAmount(new(uint256.Int)))
		if err := tx.commit(); err != nil {
			return nil, fmt.Errorf("bootstrap ledger: %w", err)
		}
		log.Info("ledger initialised", zap.String("ledger", cfg.ID.String()), zap.String("owner", cfg.Owner.String()))
	case err != nil:
		return nil, err
	case !cfg.Owner.IsZero() && owner != cfg.Owner:
		log.Info("stored owner differs from configured owner; keeping stored owner",
			zap.String("stored", owner.String()), zap.String("configured", cfg.Owner.String()))
	}
	return l, nil
}

func (l *Ledger) ID() account.ID { return l.id }
func (l *Ledger) Capacity() int  { return l.capacity }

// spare is the host balance not promised to open coupons, floored at zero.
func (l *Ledger) spare(tx *txn) (*uint256.Int, error) {
	balance, err := l.host.Balance(tx.ctx, l.id)
	if err != nil {
		return nil, fmt.Errorf("read ledger balance: %w", err)
	}
	reserved, err := tx.amounts().reserved()
	if err != nil {
		return nil, err
	}
	if balance.Lt(reserved) {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(balance, reserved), nil
}

func (l *Ledger) insertCoupon(tx *txn, coupon account.ID, amount *uint256.Int) (*uint256.Int, error) {
	_, exists, err := tx.amounts().get(coupon)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCouponAlreadyExists
	}
	burned, err := tx.burns().isBurned(coupon)
	if err != nil {
		return nil, err
	}
	if burned {
		return nil, ErrCouponAlreadyBurned
	}
	return tx.amounts().insert(coupon, amount)
}

func (l *Ledger) burnCoupon(tx *txn, coupon account.ID) (*uint256.Int, error) {
	amount, err := tx.amounts().release(coupon)
	if err != nil {
		return nil, err
	}
	tx.burns().markBurned(coupon)
	return amount, nil
}

// AddCoupon reserves amount for coupon out of the spare balance.
func (l *Ledger) AddCoupon(ctx context.Context, caller, coupon account.ID, amount *uint256.Int) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(ctx, l.store)
	if err := tx.ownership().requireOwner(caller); err != nil {
		return nil, err
	}
	spare, err := l.spare(tx)
	if err != nil {
		return nil, err
	}
	if spare.Lt(amount) {
		return nil, ErrInsufficientBalance
	}
	got, err := l.insertCoupon(tx, coupon, amount)
	if err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}

	l.metrics.CouponAdded()
	l.emit(ctx, couponEvent(EventCouponAdded, coupon, got))
	l.log.Info("coupon added", zap.String("coupon", coupon.Hex()), zap.String("amount", got.Dec()))
	return got, nil
}

// AddCoupons reserves the same amount for each non-empty slot, left to right,
// while the spare balance lasts. Slots that do not fit or cannot be inserted
// are declined.
func (l *Ledger) AddCoupons(ctx context.Context, caller account.ID, slots []*account.ID, amount *uint256.Int) (*BatchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkBatch(slots); err != nil {
		return nil, err
	}
	tx := newTxn(ctx, l.store)
	if err := tx.ownership().requireOwner(caller); err != nil {
		return nil, err
	}
	remaining, err := l.spare(tx)
	if err != nil {
		return nil, err
	}
	res, err := processBatch(slots, func(id account.ID) error {
		if remaining.Lt(amount) {
			return ErrInsufficientBalance
		}
		if _, err := l.insertCoupon(tx, id, amount); err != nil {
			return err
		}
		remaining.Sub(remaining, amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}

	for _, id := range res.Accepted {
		l.metrics.CouponAdded()
		l.emit(ctx, couponEvent(EventCouponAdded, id, amount))
	}
	for _, id := range res.Declined {
		l.metrics.CouponDeclined("add")
		l.emit(ctx, couponEvent(EventCouponDeclined, id, amount))
	}
	l.log.Info("coupon batch added",
		zap.Int("accepted", len(res.Accepted)),
		zap.Int("declined", len(res.Declined)),
		zap.String("amount", amount.Dec()),
	)
	return res, nil
}

// BurnCoupons retires each non-empty slot without paying out. Unknown coupons
// are declined.
func (l *Ledger) BurnCoupons(ctx context.Context, caller account.ID, slots []*account.ID) (*BatchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkBatch(slots); err != nil {
		return nil, err
	}
	tx := newTxn(ctx, l.store)
	if err := tx.ownership().requireOwner(caller); err != nil {
		return nil, err
	}
	amounts := make(map[account.ID]*uint256.Int)
	res, err := processBatch(slots, func(id account.ID) error {
		amount, err := l.burnCoupon(tx, id)
		if err != nil {
			return err
		}
		amounts[id] = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := tx.commit(); err != nil {
		return nil, err
	}

	for _, id := range res.Accepted {
		l.metrics.CouponBurned()
		l.emit(ctx, couponEvent(EventCouponBurned, id, amounts[id]))
	}
	for _, id := range res.Declined {
		l.metrics.CouponDeclined("burn")
		l.emit(ctx, couponEvent(EventCouponDeclined, id, nil))
	}
	l.log.Info("coupon batch burned", zap.Int("accepted", len(res.Accepted)), zap.Int("declined", len(res.Declined)))
	return res, nil
}

// ActivateCoupon pays the coupon's amount to receiver if sig is the coupon
// key's signature of receiver under the ledger's identity.
func (l *Ledger) ActivateCoupon(ctx context.Context, receiver, coupon account.ID, sig []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	amount, err := l.activate(ctx, receiver, coupon, sig)
	l.metrics.Redemption(Code(err))
	if err != nil {
		return false, err
	}

	l.metrics.PaidOut(amount)
	ev := couponEvent(EventCouponRedeemed, coupon, amount)
	ev.Account = &receiver
	l.emit(ctx, ev)
	l.log.Info("coupon redeemed",
		zap.String("coupon", coupon.Hex()),
		zap.String("receiver", receiver.String()),
		zap.String("amount", amount.Dec()),
	)
	return true, nil
}

// PaybackSpareFunds sends every unreserved unit to the owner.
func (l *Ledger) PaybackSpareFunds(ctx context.Context, caller account.ID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(ctx, l.store)
	owner, err := tx.ownership().owner()
	if err != nil {
		return false, err
	}
	if caller != owner {
		return false, ErrAccessOwner
	}
	spare, err := l.spare(tx)
	if err != nil {
		return false, err
	}
	if err := l.host.Transfer(ctx, l.id, owner, spare); err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	l.metrics.PaidOut(spare)
	l.emit(ctx, Event{Kind: EventSpareFundsPaidBack, Account: &owner, Amount: spare.Dec()})
	l.log.Info("spare funds paid back", zap.String("owner", owner.String()), zap.String("amount", spare.Dec()))
	return true, nil
}

// CheckCoupon reports whether coupon could be redeemed now and for how much.
// Unknown and burned coupons report (false, 0).
func (l *Ledger) CheckCoupon(ctx context.Context, coupon account.ID) (bool, *uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(ctx, l.store)
	amount, ok, err := tx.amounts().get(coupon)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, new(uint256.Int), nil
	}
	burned, err := tx.burns().isBurned(coupon)
	if err != nil {
		return false, nil, err
	}
	if burned {
		return false, new(uint256.Int), nil
	}
	balance, err := l.host.Balance(ctx, l.id)
	if err != nil {
		return false, nil, fmt.Errorf("read ledger balance: %w", err)
	}
	return !balance.Lt(amount), amount, nil
}

// SpareBalance returns the unreserved balance to the owner and zero to anyone
// else.
func (l *Ledger) SpareBalance(ctx context.Context, caller account.ID) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(ctx, l.store)
	if err := tx.ownership().requireOwner(caller); err != nil {
		if errors.Is(err, ErrAccessOwner) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	return l.spare(tx)
}

func (l *Ledger) TransferOwnership(ctx context.Context, caller, newOwner account.ID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTxn(ctx, l.store)
	if err := tx.ownership().transfer(caller, newOwner); err != nil {
		return false, err
	}
	if err := tx.commit(); err != nil {
		return false, err
	}

	l.emit(ctx, Event{Kind: EventOwnershipTransferred, Account: &newOwner})
	l.log.Info("ownership transferred", zap.String("from", caller.String()), zap.String("to", newOwner.String()))
	return true, nil
}

func (l *Ledger) Owner(ctx context.Context) (account.ID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return newTxn(ctx, l.store).ownership().owner()
}
