package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service-level counters for the trust operations the bridge performs.
var (
	nonceIssuanceCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nonce_issuance_total",
			Help: "Total number of authentication nonces issued.",
		},
	)

	authenticationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authentication_total",
			Help: "Total number of authentication attempts, by result.",
		},
		[]string{"result"}, // success, failure
	)

	credentialIssuanceCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_issuance_total",
			Help: "Total number of verifiable credentials issued.",
		},
	)

	credentialVerificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_verification_total",
			Help: "Total number of credential verifications, by outcome.",
		},
		[]string{"outcome"}, // valid, bad_signature, revoked, untrusted
	)

	credentialRevocationCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_revocation_total",
			Help: "Total number of credential revocations.",
		},
	)
)

// metricsHandler exposes Prometheus metrics in the exposition format through
// the main HTTP server.
func (h *Handler) metricsHandler() http.Handler {
	return promhttp.Handler()
}

// NewMetricsHandler creates a standalone handler for a separate metrics
// listener, isolating scrape traffic from application traffic.
func NewMetricsHandler() http.Handler {
	return promhttp.Handler()
}
