// Package metrics exposes Prometheus instrumentation for backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantbench_runs_total", Help: "Backtest runs by outcome"},
		[]string{"symbol", "outcome"},
	)
	BarsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantbench_bars_fetched_total", Help: "Price bars read from providers"},
		[]string{"symbol"},
	)
	EstimatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantbench_estimates_total", Help: "Estimates produced per algorithm and signal"},
		[]string{"algorithm", "signal"},
	)
	EstimateSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantbench_estimate_phase_seconds",
			Help:    "Time spent evaluating one algorithm over all trading moments",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"algorithm"},
	)
	FinalValuationDifference = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "quantbench_final_valuation_difference", Help: "Relative valuation change at the end of the last run"},
		[]string{"symbol", "algorithm"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, BarsFetched, EstimatesTotal, EstimateSeconds, FinalValuationDifference)
}

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
