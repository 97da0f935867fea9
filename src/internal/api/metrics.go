package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hellopod/src/internal/domain"
)

type metrics struct {
	registry  *prometheus.Registry
	greetings *prometheus.CounterVec
	streams   prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		greetings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hellopod",
			Name:      "greetings_total",
			Help:      "number of greetings built, by result",
		}, []string{"result"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hellopod",
			Name:      "streams_active",
			Help:      "number of open greeting streams",
		}),
	}

	m.registry.MustRegister(
		m.greetings,
		m.streams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create both series so they are exported at zero
	m.greetings.WithLabelValues(domain.ResultOk)
	m.greetings.WithLabelValues(domain.ResultError)

	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
