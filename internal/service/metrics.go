package service

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "marketplace"

// Metrics contains metrics exposed by the marketplace services.
type Metrics struct {
	// Number of assets minted.
	Minted metrics.Counter
	// Number of listings created.
	Listed metrics.Counter
	// Number of settled purchases.
	Sold metrics.Counter
	// Purchase attempts rejected, labelled by error code.
	PurchaseRejected metrics.Counter
	// Sale prices in ether.
	SalePrice metrics.Histogram
	// Events delivered by the relay, labelled by publisher.
	EventsDelivered metrics.Counter
	// Event publish failures, labelled by publisher.
	EventPublishFailures metrics.Counter
	// Undelivered events seen on the last relay poll.
	OutboxBacklog metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		Minted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "minted_total",
			Help:      "Number of assets minted.",
		}, []string{}),
		Listed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "listed_total",
			Help:      "Number of listings created.",
		}, []string{}),
		Sold: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sold_total",
			Help:      "Number of settled purchases.",
		}, []string{}),
		PurchaseRejected: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "purchase_rejected_total",
			Help:      "Purchase attempts rejected, by error code.",
		}, []string{"code"}),
		SalePrice: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sale_price_ether",
			Help:      "Sale prices in ether.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 4, 12),
		}, []string{}),
		EventsDelivered: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "events_delivered_total",
			Help:      "Events delivered, by publisher.",
		}, []string{"publisher"}),
		EventPublishFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "event_publish_failures_total",
			Help:      "Event publish failures, by publisher.",
		}, []string{"publisher"}),
		OutboxBacklog: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "outbox_backlog",
			Help:      "Undelivered events seen on the last relay poll.",
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Minted:               discard.NewCounter(),
		Listed:               discard.NewCounter(),
		Sold:                 discard.NewCounter(),
		PurchaseRejected:     discard.NewCounter(),
		SalePrice:            discard.NewHistogram(),
		EventsDelivered:      discard.NewCounter(),
		EventPublishFailures: discard.NewCounter(),
		OutboxBacklog:        discard.NewGauge(),
	}
}
