package ledger

import (
	"github.com/kantinpay/kantin/ledger/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	taps            *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	settleDuration  prometheus.Histogram
	resets          prometheus.Counter
	persistFailures *prometheus.CounterVec
}

// NewMetrics registers the ledger collectors on reg. A nil reg builds
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		taps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kantin",
			Name:      "card_taps_total",
			Help:      "Card taps reported by the reader, by whether the card is registered.",
		}, []string{"result"}),
		settlements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kantin",
			Name:      "settlements_total",
			Help:      "Payment attempts by outcome.",
		}, []string{"outcome"}),
		settleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kantin",
			Name:      "settle_duration_seconds",
			Help:      "Time spent settling a payment including the store write.",
			Buckets:   prometheus.DefBuckets,
		}),
		resets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kantin",
			Name:      "daily_resets_total",
			Help:      "Daily balance resets applied to stored cards.",
		}),
		persistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kantin",
			Name:      "persist_failures_total",
			Help:      "Store writes that failed after an in-memory change.",
		}, []string{"op"}),
	}
}

func (m *Metrics) tap(known bool) {
	if m == nil {
		return
	}
	result := "unregistered"
	if known {
		result = "registered"
	}
	m.taps.WithLabelValues(result).Inc()
}

func (m *Metrics) settled(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
	m.settleDuration.Observe(seconds)
}

func (m *Metrics) resetApplied() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

func (m *Metrics) persistFailed(op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(op).Inc()
}

func outcomeLabel(s models.Settlement, err error) string {
	switch {
	case err != nil && !models.IsWarning(err):
		return "error"
	case s.Settled():
		return string(models.SettlementSettled)
	default:
		return string(models.SettlementDeclined)
	}
}
