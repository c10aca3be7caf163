package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "email_responder"

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Poll cycles by result (ok, error, skipped).",
		},
		[]string{"result"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of completed poll cycles.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	CasesOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cases",
			Name:      "opened_total",
			Help:      "Cases created from matching messages.",
		},
	)

	RepliesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "replies_sent_total",
			Help:      "Initial replies delivered.",
		},
	)

	FollowUpsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "follow_ups_sent_total",
			Help:      "Follow-up messages delivered.",
		},
	)

	SendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "send_failures_total",
			Help:      "Failed sends by message kind (reply, follow_up).",
		},
		[]string{"kind"},
	)

	ArchiveFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "failures_total",
			Help:      "Artifacts that could not be archived, by kind.",
		},
		[]string{"kind"},
	)

	GenerationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "fallbacks_total",
			Help:      "Drafts that used the built-in fallback text, by draft kind.",
		},
		[]string{"kind"},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
