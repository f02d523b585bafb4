package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakereferral_operations_total",
			Help: "Total number of forwarded staking operations",
		},
		[]string{"operation"},
	)

	OperationAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakereferral_operation_amount_total",
			Help: "Sum of measured operation amounts in base units",
		},
		[]string{"operation"},
	)

	OperationFeesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakereferral_operation_fees_total",
			Help: "Sum of flat fees skimmed to partner payout accounts",
		},
		[]string{"operation"},
	)

	SettlementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakereferral_settlements_total",
			Help: "Total number of partner settlements",
		},
	)

	SettlementShareTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakereferral_settlement_share_total",
			Help: "Sum of partner shares paid from the treasury",
		},
	)

	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakereferral_failures_total",
			Help: "Total number of rejected operations by error kind",
		},
		[]string{"operation", "kind"},
	)

	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakereferral_events_dropped_total",
			Help: "Committed events a sink could not deliver",
		},
		[]string{"sink"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stakereferral_event_subscribers",
			Help: "Connected websocket event subscribers",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakereferral_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
)

func ObserveOperation(operation string, amount, fee uint64) {
	OperationsTotal.WithLabelValues(operation).Inc()
	OperationAmountTotal.WithLabelValues(operation).Add(float64(amount))
	OperationFeesTotal.WithLabelValues(operation).Add(float64(fee))
}

func ObserveSettlement(share uint64) {
	SettlementsTotal.Inc()
	SettlementShareTotal.Add(float64(share))
}

func ObserveFailure(operation, kind string) {
	FailuresTotal.WithLabelValues(operation, kind).Inc()
}

func ObserveDroppedEvent(sink string) {
	EventsDroppedTotal.WithLabelValues(sink).Inc()
}
