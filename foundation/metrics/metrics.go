// Package metrics records the node's operational counters with
// Prometheus. The mining attempt counter is fed straight from the proof
// of work loop so the reported hash throughput is genuine work.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the node maintains.
type Metrics struct {
	miningAttempts    prometheus.Counter
	blocksMined       prometheus.Counter
	blocksAccepted    prometheus.Counter
	chainReplacements prometheus.Counter
	requests          *prometheus.CounterVec
	handler           http.Handler
}

// New constructs the node's metric set on its own registry so tests can
// hold independent instances.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := Metrics{
		miningAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "blocky_mining_attempts_total",
			Help: "Number of nonces tried by the proof of work loop.",
		}),
		blocksMined: factory.NewCounter(prometheus.CounterOpts{
			Name: "blocky_blocks_mined_total",
			Help: "Number of blocks mined by this node.",
		}),
		blocksAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "blocky_blocks_accepted_total",
			Help: "Number of peer blocks accepted into the chain.",
		}),
		chainReplacements: factory.NewCounter(prometheus.CounterOpts{
			Name: "blocky_chain_replacements_total",
			Help: "Number of times the local chain was replaced by a stronger one.",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blocky_http_requests_total",
			Help: "Number of HTTP requests served.",
		}, []string{"path", "status"}),
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &m
}

// Handler exposes the registry this metric set writes to, for mounting
// on the debug mux.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// AddMiningAttempts records nonces tried by the proof of work loop.
func (m *Metrics) AddMiningAttempts(delta uint64) {
	m.miningAttempts.Add(float64(delta))
}

// IncBlocksMined records a block mined locally.
func (m *Metrics) IncBlocksMined() {
	m.blocksMined.Inc()
}

// IncBlocksAccepted records a peer block written to the chain.
func (m *Metrics) IncBlocksAccepted() {
	m.blocksAccepted.Inc()
}

// IncChainReplacements records an adopted fork.
func (m *Metrics) IncChainReplacements() {
	m.chainReplacements.Inc()
}

// IncRequest records an HTTP request against its route and status.
func (m *Metrics) IncRequest(path string, status string) {
	m.requests.WithLabelValues(path, status).Inc()
}
