package ledger

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
)

type EventKind string

const (
	EventCouponAdded          EventKind = "coupon_added"
	EventCouponDeclined       EventKind = "coupon_declined"
	EventCouponBurned         EventKind = "coupon_burned"
	EventCouponRedeemed       EventKind = "coupon_redeemed"
	EventSpareFundsPaidBack   EventKind = "spare_funds_paid_back"
	EventOwnershipTransferred EventKind = "ownership_transferred"
)

// Event is one committed state change. Amount is a decimal string.
type Event struct {
	Kind    EventKind   `json:"kind"`
	Coupon  *account.ID `json:"coupon,omitempty"`
	Account *account.ID `json:"account,omitempty"`
	Amount  string      `json:"amount,omitempty"`
	Time    int64       `json:"time"`
}

// EventSink receives events after their operation has committed.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

type nopSink struct{}

func (nopSink) Record(context.Context, Event) error { return nil }

func couponEvent(kind EventKind, coupon account.ID, amount *uint256.Int) Event {
	ev := Event{Kind: kind, Coupon: &coupon}
	if amount != nil {
		ev.Amount = amount.Dec()
	}
	return ev
}

func (l *Ledger) emit(ctx context.Context, ev Event) {
	ev.Time = l.now().Unix()
	if err := l.sink.Record(ctx, ev); err != nil {
		l.log.Warn("record event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func defaultClock() time.Time { return time.Now() }
