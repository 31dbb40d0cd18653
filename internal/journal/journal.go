// Package journal keeps a bounded, append-only record of committed ledger
// events for operators.
package journal

import (
	"context"

	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

// DefaultMaxLen bounds the journal when no length is configured.
const DefaultMaxLen = 10000

// Journal is a ledger.EventSink that can also list what it recorded.
type Journal interface {
	ledger.EventSink
	// Recent returns up to n events, oldest first.
	Recent(ctx context.Context, n int) ([]ledger.Event, error)
}
