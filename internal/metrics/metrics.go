// Package metrics holds the Prometheus collectors for ledger activity. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "couponsd"

type Metrics struct {
	couponsAdded    prometheus.Counter
	couponsDeclined *prometheus.CounterVec
	couponsBurned   prometheus.Counter
	redemptions     *prometheus.CounterVec
	paidOut         prometheus.Counter
	reserved        prometheus.Gauge
	balance         prometheus.Gauge
	openCoupons     prometheus.Gauge
	auditViolations prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		couponsAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "coupons_added_total",
			Help: "Coupons accepted into the ledger.",
		}),
		couponsDeclined: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "coupons_declined_total",
			Help: "Batch slots declined, by operation.",
		}, []string{"op"}),
		couponsBurned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "coupons_burned_total",
			Help: "Coupons burned administratively.",
		}),
		redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "redemptions_total",
			Help: "Redemption attempts, by result code.",
		}, []string{"result"}),
		paidOut: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "paid_out_total",
			Help: "Native units transferred out of the ledger.",
		}),
		reserved: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "reserved",
			Help: "Total amount reserved for open coupons.",
		}),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "balance",
			Help: "Ledger balance reported by the host at the last audit.",
		}),
		openCoupons: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_coupons",
			Help: "Open coupons counted at the last audit.",
		}),
		auditViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "audit_violations_total",
			Help: "Invariant violations found by the auditor.",
		}),
	}
}

func (m *Metrics) CouponAdded() {
	if m != nil {
		m.couponsAdded.Inc()
	}
}

func (m *Metrics) CouponDeclined(op string) {
	if m != nil {
		m.couponsDeclined.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) CouponBurned() {
	if m != nil {
		m.couponsBurned.Inc()
	}
}

// Redemption counts one attempt; result is "ok" or an error code.
func (m *Metrics) Redemption(result string) {
	if m != nil {
		m.redemptions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) PaidOut(amount *uint256.Int) {
	if m != nil {
		m.paidOut.Add(toFloat(amount))
	}
}

func (m *Metrics) SetReserved(amount *uint256.Int) {
	if m != nil {
		m.reserved.Set(toFloat(amount))
	}
}

func (m *Metrics) SetBalance(amount *uint256.Int) {
	if m != nil {
		m.balance.Set(toFloat(amount))
	}
}

func (m *Metrics) SetOpenCoupons(n int) {
	if m != nil {
		m.openCoupons.Set(float64(n))
	}
}

func (m *Metrics) AuditViolation() {
	if m != nil {
		m.auditViolations.Inc()
	}
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
