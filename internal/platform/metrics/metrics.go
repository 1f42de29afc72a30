package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	AgreementsCreated   prometheus.Counter
	AgreementVersions   prometheus.Counter
	ConsentDecisions    prometheus.Counter
	ConsentCommits      *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentdesk_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		AgreementsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentdesk_agreements_created_total",
			Help: "Total number of agreements created.",
		}),
		AgreementVersions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentdesk_agreement_versions_total",
			Help: "Total number of content-changing agreement updates.",
		}),
		ConsentDecisions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentdesk_consent_decisions_staged_total",
			Help: "Total number of staged consent decisions.",
		}),
		ConsentCommits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentdesk_consent_commits_total",
			Help: "Consent record commits by outcome.",
		}, []string{"outcome"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
