// Package metrics provides Prometheus metrics for rating runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/richard-senior/podds/pkg/podds"
)

var _ podds.Recorder = (*RunMetrics)(nil)

// RunMetrics collects per-league counters for a pipeline run on a private registry.
type RunMetrics struct {
	registry *prometheus.Registry

	MatchesRated     *prometheus.CounterVec
	UncertainMatches *prometheus.CounterVec
	BetsTotal        *prometheus.CounterVec
	StakeTotal       *prometheus.CounterVec
	StakeSize        *prometheus.HistogramVec
	Bankroll         *prometheus.GaugeVec
}

// NewRunMetrics creates and registers the collectors.
func NewRunMetrics() *RunMetrics {
	rm := &RunMetrics{
		registry: prometheus.NewRegistry(),

		MatchesRated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podds_matches_rated_total",
				Help: "Matches folded into the rating store",
			},
			[]string{"league"},
		),
		UncertainMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podds_uncertain_matches_total",
				Help: "Matches rated while either team had less than a full window of history",
			},
			[]string{"league"},
		),
		BetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podds_bets_total",
				Help: "Settled bets by side and outcome",
			},
			[]string{"league", "side", "outcome"},
		),
		StakeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "podds_stake_total",
				Help: "Sum of stakes placed",
			},
			[]string{"league"},
		),
		StakeSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "podds_stake_size",
				Help:    "Distribution of individual stakes",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"league"},
		),
		Bankroll: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "podds_bankroll",
				Help: "Bankroll at the end of the league run",
			},
			[]string{"league"},
		),
	}
	rm.registry.MustRegister(
		rm.MatchesRated,
		rm.UncertainMatches,
		rm.BetsTotal,
		rm.StakeTotal,
		rm.StakeSize,
		rm.Bankroll,
	)
	return rm
}

// Registry returns the registry holding the run's collectors.
func (rm *RunMetrics) Registry() *prometheus.Registry {
	return rm.registry
}

// MatchRated counts a rated match.
func (rm *RunMetrics) MatchRated(league string, uncertain bool) {
	rm.MatchesRated.WithLabelValues(league).Inc()
	if uncertain {
		rm.UncertainMatches.WithLabelValues(league).Inc()
	}
}

// BetSettled counts a placed bet and its stake.
func (rm *RunMetrics) BetSettled(league string, side podds.Side, won bool, stake float64) {
	outcome := "lost"
	if won {
		outcome = "won"
	}
	rm.BetsTotal.WithLabelValues(league, string(side), outcome).Inc()
	// a permissive run can stake from a negative bankroll, counters only go up
	if stake > 0 {
		rm.StakeTotal.WithLabelValues(league).Add(stake)
		rm.StakeSize.WithLabelValues(league).Observe(stake)
	}
}

// BankrollUpdated records the league's bankroll.
func (rm *RunMetrics) BankrollUpdated(league string, bankroll float64) {
	rm.Bankroll.WithLabelValues(league).Set(bankroll)
}

// WriteTextfile writes the registry in the text exposition format, for the node
// exporter's textfile collector.
func (rm *RunMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, rm.registry)
}
