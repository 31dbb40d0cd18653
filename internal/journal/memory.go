package journal

import (
	"context"
	"sync"

	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

// Memory keeps the newest maxLen events in process.
type Memory struct {
	mu     sync.Mutex
	events []ledger.Event
	maxLen int
}

func NewMemory(maxLen int) *Memory {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Memory{maxLen: maxLen}
}

func (m *Memory) Record(_ context.Context, ev ledger.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if over := len(m.events) - m.maxLen; over > 0 {
		m.events = append([]ledger.Event(nil), m.events[over:]...)
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, n int) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		return []ledger.Event{}, nil
	}
	if n > len(m.events) {
		n = len(m.events)
	}
	return append([]ledger.Event{}, m.events[len(m.events)-n:]...), nil
}
