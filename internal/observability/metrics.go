// Package observability registers the service's Prometheus collectors.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hybridathlete"

var (
	ProfileCommits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "commits_total",
		Help:      "Section edit commits, labeled by section and outcome.",
	}, []string{"section", "outcome"})

	BenchmarkWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "profile",
		Name:      "benchmark_writes_total",
		Help:      "Benchmark lift adds and deletes, labeled by operation and outcome.",
	}, []string{"op", "outcome"})

	OnboardingSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "onboarding",
		Name:      "submissions_total",
		Help:      "Onboarding submissions, labeled by outcome.",
	}, []string{"outcome"})

	GenerationJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "jobs_total",
		Help:      "Training block generation jobs, labeled by outcome (success, failed, transport_error).",
	}, []string{"outcome"})

	GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "job_duration_seconds",
		Help:      "Time from issuing a generation job to its settlement.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, labeled by method and status code.",
	}, []string{"method", "status"})
)

func init() {
	prometheus.MustRegister(ProfileCommits, BenchmarkWrites, OnboardingSubmissions,
		GenerationJobs, GenerationDuration, HTTPRequests)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
