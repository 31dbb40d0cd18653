package ledger

import "github.com/0gfoundation/0g-coupon-ledger/internal/account"

// BatchResult partitions the non-empty slots of a batch. Empty slots appear
// in neither list.
type BatchResult struct {
	Accepted []account.ID `json:"accepted"`
	Declined []account.ID `json:"declined"`
}

func (l *Ledger) checkBatch(slots []*account.ID) error {
	if len(slots) > l.capacity {
		return ErrBatchTooLarge
	}
	return nil
}

// processBatch runs op over every non-empty slot in order. A slot error
// declines that slot; any other error aborts the batch.
func processBatch(slots []*account.ID, op func(account.ID) error) (*BatchResult, error) {
	res := &BatchResult{Accepted: []account.ID{}, Declined: []account.ID{}}
	for _, slot := range slots {
		if slot == nil {
			continue
		}
		id := *slot
		err := op(id)
		switch {
		case err == nil:
			res.Accepted = append(res.Accepted, id)
		case slotError(err):
			res.Declined = append(res.Declined, id)
		default:
			return nil, err
		}
	}
	return res, nil
}
