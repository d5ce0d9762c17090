// Package metrics exposes Prometheus counters for the identity core. Only
// coarse outcomes are labeled; nothing here can leak which check failed for
// a given request.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_tokens_issued_total",
			Help: "Lifecycle tokens issued, by purpose.",
		},
		[]string{"purpose"},
	)

	tokensRedeemed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_tokens_redeemed_total",
			Help: "Lifecycle token redemption attempts, by purpose and result.",
		},
		[]string{"purpose", "result"},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)
)

// Init registers the collectors with the default registry. Call once at
// startup.
func Init() {
	prometheus.MustRegister(tokensIssued, tokensRedeemed, logins)
}

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func TokenIssued(purpose string)           { tokensIssued.WithLabelValues(purpose).Inc() }
func TokenRedeemed(purpose, result string) { tokensRedeemed.WithLabelValues(purpose, result).Inc() }
func Login(result string)                  { logins.WithLabelValues(result).Inc() }
