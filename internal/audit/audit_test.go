package audit

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/bank"
	"github.com/0gfoundation/0g-coupon-ledger/internal/kvstore"
	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
	"github.com/0gfoundation/0g-coupon-ledger/internal/metrics"
)

var (
	ledgerID = account.ID{0x1e}
	owner    = account.ID{0x0a}
)

type countingAuditor struct {
	calls atomic.Int32
	err   error
}

func (c *countingAuditor) Audit(context.Context) (*ledger.Report, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	zero := new(uint256.Int)
	return &ledger.Report{Reserved: zero, Sum: zero, Balance: zero}, nil
}

func TestRunAuditsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &countingAuditor{}

	done := make(chan struct{})
	go func() {
		Run(ctx, 10*time.Millisecond, a, nil, zap.NewNop())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for a.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("auditor ran %d times, want at least 3", a.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auditor did not stop after cancel")
	}
}

func TestRunAuditSurvivesErrors(t *testing.T) {
	a := &countingAuditor{err: errors.New("store down")}
	if r := runAudit(context.Background(), a, nil, zap.NewNop()); r != nil {
		t.Fatalf("expected nil report on error, got %+v", r)
	}
}

func TestRunAuditCountsViolations(t *testing.T) {
	ctx := context.Background()
	host := bank.NewMemory()
	host.SetBalance(ledgerID, uint256.NewInt(1000))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	l, err := ledger.New(ctx, ledger.Config{ID: ledgerID, Owner: owner}, kvstore.NewMemory(), host, nil, m, zap.NewNop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if _, err := l.AddCoupon(ctx, owner, account.ID{0x42}, uint256.NewInt(600)); err != nil {
		t.Fatalf("add coupon: %v", err)
	}

	r := runAudit(ctx, l, m, zap.NewNop())
	if r == nil || !r.OK() {
		t.Fatalf("expected clean report, got %+v", r)
	}
	if r.OpenCoupons != 1 || r.Reserved.Uint64() != 600 {
		t.Fatalf("report = %+v", r)
	}

	host.SetBalance(ledgerID, uint256.NewInt(100))
	r = runAudit(ctx, l, m, zap.NewNop())
	if r == nil || r.OK() {
		t.Fatalf("expected violation after balance drop, got %+v", r)
	}
	expected := `
# HELP couponsd_audit_violations_total Invariant violations found by the auditor.
# TYPE couponsd_audit_violations_total counter
couponsd_audit_violations_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "couponsd_audit_violations_total"); err != nil {
		t.Fatalf("audit violations metric: %v", err)
	}
}
