package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quadspaceSessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quadspace_session_count",
		Help: "The number of sessions.",
	})

	quadspaceSessionCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadspace_session_count_total",
		Help: "The total number of sessions.",
	})
)

func instrumentIncreaseSessionGauge() {
	quadspaceSessionCount.Inc()
}

func instrumentDecreaseSessionGauge() {
	quadspaceSessionCount.Dec()
}

func instrumentCountSession() {
	quadspaceSessionCountTotal.Inc()
}
