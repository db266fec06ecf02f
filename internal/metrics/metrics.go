// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds the collectors on a private registry so tests can create
// as many instances as they like.
type Metrics struct {
	registry    *prometheus.Registry
	commands    *prometheus.CounterVec
	rollovers   *prometheus.CounterVec
	requests    *prometheus.HistogramVec
	balance     prometheus.Gauge
	liveClients prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kazna",
			Name:      "commands_total",
			Help:      "Treasury commands by name and result.",
		}, []string{"command", "result"}),
		rollovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kazna",
			Name:      "rollovers_total",
			Help:      "Monthly rollover attempts by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kazna",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kazna",
			Name:      "balance",
			Help:      "Current treasury balance.",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kazna",
			Name:      "live_clients",
			Help:      "Connected live dashboard clients.",
		}),
	}
	m.registry.MustRegister(
		m.commands,
		m.rollovers,
		m.requests,
		m.balance,
		m.liveClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Command counts one treasury command. A nil receiver is a no-op so
// components can run without metrics in tests.
func (m *Metrics) Command(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Rollover(trigger, outcome string) {
	if m == nil {
		return
	}
	m.rollovers.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) SetBalance(b decimal.Decimal) {
	if m == nil {
		return
	}
	m.balance.Set(b.InexactFloat64())
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}

func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
