// Package metrics exposes Prometheus counters for the HTTP edge, logins and
// the payment lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginSuccess            = "success"
	LoginMFARequired        = "mfa_required"
	LoginInvalidCredentials = "invalid_credentials"
	LoginInvalidMFA         = "invalid_mfa"
	LoginLocked             = "locked"
	LoginDeactivated        = "deactivated"
)

var (
	httpRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payportal",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payportal",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	loginAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payportal",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	lockoutsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payportal",
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failures, by the factor that tripped the lock.",
		},
		[]string{"factor"},
	)

	paymentStatusCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payportal",
			Name:      "payment_status_changes_total",
			Help:      "Payments entering each status.",
		},
		[]string{"status"},
	)
)

// ObserveRequest records one served request. route is the matched pattern,
// not the raw path, so ids do not explode the label set.
func ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationHist.WithLabelValues(method, route).Observe(d.Seconds())
}

// LoginAttempt counts a login step ending with outcome.
func LoginAttempt(outcome string) {
	loginAttemptsCounter.WithLabelValues(outcome).Inc()
}

// Lockout counts an account lock.
func Lockout(factor string) {
	lockoutsCounter.WithLabelValues(factor).Inc()
}

// PaymentStatus counts a payment entering status.
func PaymentStatus(status string) {
	paymentStatusCounter.WithLabelValues(status).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
