package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// WalletMetrics counts connection transitions and contract event traffic
type WalletMetrics struct {
	transitions     *prometheus.CounterVec
	staleDiscarded  prometheus.Counter
	eventsDelivered *prometheus.CounterVec
	attachFailures  *prometheus.CounterVec
	activeWatches   prometheus.Gauge
}

var (
	walletMetricsOnce sync.Once
	walletRegistry    *WalletMetrics
)

// Wallet returns the metrics registry of the wallet connection layer.
func Wallet() *WalletMetrics {
	walletMetricsOnce.Do(func() {
		walletRegistry = &WalletMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agrimarket",
				Subsystem: "wallet",
				Name:      "transitions_total",
				Help:      "Committed connection state transitions.",
			}, []string{"from", "to"}),
			staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "agrimarket",
				Subsystem: "wallet",
				Name:      "stale_initializations_total",
				Help:      "Initializations discarded because a newer attempt superseded them.",
			}),
			eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agrimarket",
				Subsystem: "events",
				Name:      "delivered_total",
				Help:      "Contract events delivered to subscribers, by event name.",
			}, []string{"event"}),
			attachFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "agrimarket",
				Subsystem: "events",
				Name:      "attach_failures_total",
				Help:      "Failed attempts to attach a contract event watch.",
			}, []string{"event"}),
			activeWatches: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "agrimarket",
				Subsystem: "events",
				Name:      "active_watches",
				Help:      "Contract event watches attached to the current handle.",
			}),
		}
		prometheus.MustRegister(
			walletRegistry.transitions,
			walletRegistry.staleDiscarded,
			walletRegistry.eventsDelivered,
			walletRegistry.attachFailures,
			walletRegistry.activeWatches,
		)
	})
	return walletRegistry
}

func label(value string) string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}

func (m *WalletMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(label(from), label(to)).Inc()
}

func (m *WalletMetrics) RecordStaleDiscarded() {
	if m == nil {
		return
	}
	m.staleDiscarded.Inc()
}

func (m *WalletMetrics) RecordEventDelivered(event string) {
	if m == nil {
		return
	}
	m.eventsDelivered.WithLabelValues(label(event)).Inc()
}

func (m *WalletMetrics) RecordAttachFailure(event string) {
	if m == nil {
		return
	}
	m.attachFailures.WithLabelValues(label(event)).Inc()
}

func (m *WalletMetrics) SetActiveWatches(n int) {
	if m == nil {
		return
	}
	m.activeWatches.Set(float64(n))
}
