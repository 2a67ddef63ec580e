package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ServiceName = "prisma"
)

var (
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "upstream", "request_duration_seconds"),
		Help:    "Duration of upstream module requests in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"module", "route", "outcome"})
	AggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prometheus.BuildFQName(ServiceName, "aggregation", "duration_seconds"),
		Help:    "Duration of task aggregation in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"module", "backend"})
	PrivacyBreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "privacy", "breaches_total"),
		Help: "Number of requests below a configured privacy threshold",
	}, []string{"check"})
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(ServiceName, "cache", "lookups_total"),
		Help: "Cache lookups by kind and result",
	}, []string{"kind", "result"})
)
