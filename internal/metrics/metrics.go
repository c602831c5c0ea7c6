package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nightpulse",
			Name:      "provider_calls_total",
			Help:      "Count of external place-provider calls by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	placeCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nightpulse",
			Name:      "place_cache_lookups_total",
			Help:      "Count of place cache lookups by result.",
		},
		[]string{"result"},
	)

	votesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nightpulse",
			Name:      "votes_recorded_total",
			Help:      "Count of recorded votes by value.",
		},
		[]string{"value"},
	)

	votesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nightpulse",
			Name:      "votes_rejected_total",
			Help:      "Count of rejected votes by reason.",
		},
		[]string{"reason"},
	)

	promotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nightpulse",
			Name:      "venue_promotions_total",
			Help:      "Count of external places promoted into the registry.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(providerCalls, placeCacheLookups, votesRecorded, votesRejected, promotions)
	})
}

func IncProviderCall(kind, outcome string) {
	providerCalls.WithLabelValues(kind, outcome).Inc()
}

func IncPlaceCacheLookup(result string) {
	placeCacheLookups.WithLabelValues(result).Inc()
}

func IncVoteRecorded(isOpen bool) {
	v := "closed"
	if isOpen {
		v = "open"
	}
	votesRecorded.WithLabelValues(v).Inc()
}

func IncVoteRejected(reason string) {
	votesRejected.WithLabelValues(reason).Inc()
}

func IncPromotion() {
	promotions.Inc()
}
