// Package audit periodically checks the ledger's bookkeeping invariants and
// publishes the results as metrics.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
	"github.com/0gfoundation/0g-coupon-ledger/internal/metrics"
)

// Auditor is the part of the ledger the loop needs.
type Auditor interface {
	Audit(ctx context.Context) (*ledger.Report, error)
}

// Run audits l every interval until ctx is cancelled.
func Run(ctx context.Context, interval time.Duration, l Auditor, m *metrics.Metrics, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("auditor started", zap.Duration("interval", interval))
	runAudit(ctx, l, m, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("auditor stopped")
			return
		case <-ticker.C:
			runAudit(ctx, l, m, log)
		}
	}
}

func runAudit(ctx context.Context, l Auditor, m *metrics.Metrics, log *zap.Logger) *ledger.Report {
	r, err := l.Audit(ctx)
	if err != nil {
		log.Error("audit: read ledger", zap.Error(err))
		return nil
	}
	for _, v := range r.Violations {
		m.AuditViolation()
		log.Error("audit: invariant violated", zap.String("detail", v))
	}
	log.Debug("audit complete",
		zap.Int("open_coupons", r.OpenCoupons),
		zap.Int("pending", r.Pending),
		zap.String("reserved", r.Reserved.Dec()),
		zap.String("balance", r.Balance.Dec()),
	)
	return r
}
