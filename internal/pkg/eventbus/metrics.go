// internal/pkg/eventbus/metrics.go
package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_events_published_total",
		Help: "Events published to the shared events topic.",
	}, []string{"topic", "event_type"})

	consumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_events_consumed_total",
		Help: "Matched events fetched by a service consumer.",
	}, []string{"service"})

	ackedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_events_acked_total",
		Help: "Events handled successfully and committed.",
	}, []string{"service"})

	deadLettersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_dead_letters_total",
		Help: "Messages routed to a service dead-letter topic.",
	}, []string{"service"})
)
