package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mikradb/pkg/store"
)

const (
	tierMemory  = "memory"
	tierDurable = "durable"
	tierShared  = "shared"
	tierSource  = "source"

	outcomeHit         = "hit"
	outcomeMiss        = "miss"
	outcomeExpired     = "expired"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mikradb",
		Subsystem: "cache",
		Name:      "tier_lookups_total",
		Help:      "Tier lookup outcomes, labeled by tier and outcome.",
	}, []string{"tier", "outcome"})

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mikradb",
		Subsystem: "cache",
		Name:      "resolve_duration_seconds",
		Help:      "Resolve latency, labeled by the tier that answered.",
		Buckets:   []float64{.001, .005, .025, .1, .5, 1, 2.5, 10},
	}, []string{"tier"})

	_ = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "mikradb",
		Subsystem: "store",
		Name:      "disk_usage_bytes",
		Help:      "Best-effort on-disk size of the pebble store.",
	}, func() float64 { return float64(store.DiskUsage()) })
)

func tierCounter(tier, outcome string) {
	lookups.WithLabelValues(tier, outcome).Inc()
}

func observeResolve(tier string, err error, d time.Duration) {
	if err != nil {
		return
	}
	resolveDuration.WithLabelValues(tier).Observe(d.Seconds())
}
