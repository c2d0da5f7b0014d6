package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoutesCalculated counts route queries by mode and outcome
	RoutesCalculated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switch_routes_calculated_total",
			Help: "Total number of route calculations",
		},
		[]string{"mode", "outcome"},
	)

	// RouteCacheHits counts cache hits and misses for route queries
	RouteCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switch_route_cache_total",
			Help: "Route cache lookups by result",
		},
		[]string{"result"},
	)

	// TransfersTotal counts transfers by adapter and status
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switch_transfers_total",
			Help: "Total number of settled transfers",
		},
		[]string{"adapter", "status"},
	)

	// TransferAmount tracks transferred amounts in ether units
	TransferAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switch_transfer_amount",
			Help:    "Amount of tokens transferred per leg",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"adapter", "token"},
	)

	// MultiPathLegs tracks the number of legs chosen per multi-path split
	MultiPathLegs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switch_multi_path_legs",
			Help:    "Legs per multi-path transfer",
			Buckets: []float64{1, 2, 3},
		},
	)

	// AdapterHealthy tracks the registry's health view per adapter
	AdapterHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switch_adapter_healthy",
			Help: "Registry health state per adapter (1 healthy, 0 unhealthy)",
		},
		[]string{"adapter"},
	)

	// AdapterReliability tracks the derived reliability score per adapter
	AdapterReliability = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "switch_adapter_reliability_score",
			Help: "Derived adapter reliability score (0-100)",
		},
		[]string{"adapter"},
	)

	// RegisteredAdapters tracks the number of registered adapters
	RegisteredAdapters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switch_registered_adapters",
			Help: "Number of adapters currently registered",
		},
	)

	// RejectedTransfers counts execution rejections by reason
	RejectedTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switch_rejected_transfers_total",
			Help: "Transfers rejected before custody by reason",
		},
		[]string{"reason"},
	)
)
