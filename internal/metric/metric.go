package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthLookups counts credential checks by kind (session/token) and
	// outcome (hit/miss/error).
	AuthLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eardogger_auth_lookups_total",
		Help: "Credential store lookups made while resolving request identity.",
	}, []string{"kind", "outcome"})

	// BackgroundWriteFailures counts fire-and-forget store writes that
	// didn't stick. These are advisory (expiry/last-used bumps), so a
	// failure here is never surfaced to a request.
	BackgroundWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eardogger_background_write_failures_total",
		Help: "Failed fire-and-forget refresh writes, by task name.",
	}, []string{"task"})

	// ExpiredSessionsSwept counts rows removed by the periodic session sweep.
	ExpiredSessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eardogger_expired_sessions_swept_total",
		Help: "Expired session rows removed by the background sweep.",
	})
)
