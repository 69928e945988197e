// Package observability holds the prometheus collectors for the request
// pipeline and the handler that exposes them.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuthOutcomes counts authorization middleware results by outcome code,
	// "ok" included.
	AuthOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_auth_outcomes_total",
		Help: "Authorization middleware outcomes by code.",
	}, []string{"outcome"})

	// TokensIssued counts issued tokens by kind (access, refresh).
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_tokens_issued_total",
		Help: "Tokens issued by kind.",
	}, []string{"kind"})

	// RateLimitRejected counts requests refused by the per-route limiter.
	RateLimitRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_ratelimit_rejected_total",
		Help: "Requests rejected by the per-route rate limiter.",
	}, []string{"route"})

	// RevocationCheckFailures counts deny-list lookups that errored and were
	// treated as not revoked.
	RevocationCheckFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_blacklist_check_failures_total",
		Help: "Deny-list lookups that failed and fell back to not revoked.",
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
