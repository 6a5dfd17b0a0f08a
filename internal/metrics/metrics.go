package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Contract call metrics
	ContractCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmarket_contract_calls_total",
			Help: "Total number of contract calls issued",
		},
		[]string{"function", "kind", "status"}, // create_market, read/write, success/error
	)

	ContractCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genmarket_contract_call_duration_seconds",
			Help:    "Duration of contract calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// Account metrics
	AccountsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genmarket_accounts_created_total",
			Help: "Total number of accounts generated and persisted",
		},
	)

	// Deployment metrics
	FinalityTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmarket_finality_tiers_total",
			Help: "Finality tier attempts by outcome",
		},
		[]string{"tier", "status"}, // FINALIZED/ACCEPTED, reached/exhausted
	)

	Deployments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genmarket_deployments_total",
			Help: "Total number of deployment runs",
		},
		[]string{"status"}, // success/error
	)

	DeploymentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genmarket_deployment_duration_seconds",
			Help:    "Duration of deployment runs",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
)

// RecordContractCall records contract call metrics
func RecordContractCall(function, kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ContractCalls.WithLabelValues(function, kind, status).Inc()
	ContractCallDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFinalityTier records whether a finality tier reached its status
func RecordFinalityTier(tier string, reached bool) {
	status := "reached"
	if !reached {
		status = "exhausted"
	}
	FinalityTiers.WithLabelValues(tier, status).Inc()
}

// RecordDeployment records a completed deployment run
func RecordDeployment(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	Deployments.WithLabelValues(status).Inc()
	DeploymentDuration.Observe(duration.Seconds())
}
