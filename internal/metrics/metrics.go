// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveSubscriptions counts open live queries. A value that only grows
	// points at subscriptions nobody closed.
	LiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tandem_live_subscriptions",
		Help: "Number of open live collection subscriptions.",
	})

	StoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tandem_store_write_failures_total",
		Help: "Document store writes that failed, by operation.",
	}, []string{"op"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tandem_ws_clients",
		Help: "Connected WebSocket clients.",
	})
)
