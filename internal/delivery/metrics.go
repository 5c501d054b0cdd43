package delivery

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// Metrics holds the Prometheus metrics for the delivery engine.
type Metrics struct {
	// Dispatch metrics
	GroupsAttempted prometheus.Counter
	GroupsDelivered prometheus.Counter
	GroupsFailed    *prometheus.CounterVec

	// Recipient metrics
	RecipientsDelivered prometheus.Counter
	RecipientsRejected  prometheus.Counter
	BouncesSynthesized  prometheus.Counter

	// Transport metrics
	ConnectDuration prometheus.Histogram
	SessionDuration prometheus.Histogram

	// DNS metrics
	DNSQueries     prometheus.Counter
	DNSCacheHits   prometheus.Counter
	DNSCacheMisses prometheus.Counter
	DNSErrors      prometheus.Counter
}

// GetMetrics returns the singleton metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

func newMetrics() *Metrics {
	return &Metrics{
		GroupsAttempted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_delivery_groups_attempted_total",
			Help: "Total number of domain-group delivery attempts",
		}),
		GroupsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_delivery_groups_delivered_total",
			Help: "Domain groups whose session ran to completion",
		}),
		GroupsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jib_delivery_groups_failed_total",
			Help: "Domain groups that failed as a whole, by error type",
		}, []string{"type"}),

		RecipientsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_delivery_recipients_delivered_total",
			Help: "Recipients accepted by remote hosts",
		}),
		RecipientsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_delivery_recipients_rejected_total",
			Help: "Recipients refused by remote hosts",
		}),
		BouncesSynthesized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_delivery_bounces_synthesized_total",
			Help: "Undeliverable notifications generated",
		}),

		ConnectDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jib_delivery_connect_duration_seconds",
			Help:    "Time to establish outbound connections",
			Buckets: prometheus.DefBuckets,
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jib_delivery_session_duration_seconds",
			Help:    "Duration of outbound SMTP sessions",
			Buckets: prometheus.DefBuckets,
		}),

		DNSQueries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_dns_queries_total",
			Help: "DNS lookups issued by the resolver",
		}),
		DNSCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_dns_cache_hits_total",
			Help: "Resolver cache hits",
		}),
		DNSCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_dns_cache_misses_total",
			Help: "Resolver cache misses",
		}),
		DNSErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jib_dns_errors_total",
			Help: "DNS lookups that failed after retries",
		}),
	}
}
