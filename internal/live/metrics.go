package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Update outcomes recorded by updatesTotal.
const (
	outcomeApplied = "applied"
	outcomeDropped = "dropped"
	outcomeFailed  = "failed"
)

// Prometheus metrics for the live engine.
var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "omnistate_live_updates_total",
		Help: "Row snapshots processed by collection and outcome",
	}, []string{"collection", "outcome"})

	activeWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "omnistate_live_watches",
		Help: "Registered live watches",
	})
)
