/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strconv"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "mysteryathlete"

// Metrics implements round.Metrics on prometheus collectors.
type Metrics struct {
	guesses     *prometheus.CounterVec
	flips       *prometheus.CounterVec
	completions *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	players     prometheus.Gauge
	connections prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		guesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "guesses_total",
			Help:      "Guesses evaluated, by outcome.",
		}, []string{"sport", "outcome"}),
		flips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tile_flips_total",
			Help:      "Tiles flipped, by tile and whether the flip cost points.",
		}, []string{"sport", "tile", "scored"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rounds_completed_total",
			Help:      "Rounds completed, by reason.",
		}, []string{"sport", "reason"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "final_score",
			Help:      "Score at completion.",
			Buckets:   []float64{0, 50, 70, 80, 90, 95, 100},
		}, []string{"sport"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "result_submissions_total",
			Help:      "Result submissions, by result.",
		}, []string{"sport", "result"}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "players",
			Help:      "Players with a live event loop.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
	}

	reg.MustRegister(m.guesses, m.flips, m.completions, m.scores, m.submissions, m.players, m.connections)

	return m
}

func (m *Metrics) GuessEvaluated(sport string, outcome round.Outcome) {
	m.guesses.WithLabelValues(sport, string(outcome)).Inc()
}

func (m *Metrics) TileFlipped(sport string, tile round.Tile, scored bool) {
	m.flips.WithLabelValues(sport, string(tile), strconv.FormatBool(scored)).Inc()
}

func (m *Metrics) RoundCompleted(sport string, reason round.CompletionReason, score int) {
	m.completions.WithLabelValues(sport, string(reason)).Inc()
	m.scores.WithLabelValues(sport).Observe(float64(score))
}

func (m *Metrics) ResultSubmitted(sport string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.submissions.WithLabelValues(sport, result).Inc()
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func registerMetricsHandler(cfg *Config, reg *prometheus.Registry, mux *httprouter.Router) {
	mux.Handler("GET", cfg.prefix+"/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}
