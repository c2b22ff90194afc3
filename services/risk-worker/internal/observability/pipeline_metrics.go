package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "transactions_ingested_total",
		Help:      "Transactions consumed from the ingest topic.",
	})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "validation_failures_total",
		Help:      "Transactions rejected by the normalizer, by field.",
	}, []string{"field"})

	RecordsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "risk_records_published_total",
		Help:      "Risk records durably persisted, by risk level.",
	}, []string{"risk_level"})

	AlertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "alerts_raised_total",
		Help:      "High risk records added to the alert stream.",
	})

	PublishOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "publish_overflows_total",
		Help:      "Publishes rejected because the output buffer was full.",
	})

	RecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "risk_records_dropped_total",
		Help:      "Risk records discarded after persistence failed terminally.",
	})

	DLQMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "dlq_messages_total",
		Help:      "Messages routed to the dead letter topic.",
	})

	StateResets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "state_resets_total",
		Help:      "Per-user state resets after an integrity violation.",
	})

	ScoringLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "scoring_latency_seconds",
		Help:      "Time from pipeline submit to publish enqueue.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	ShardDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "shard_queue_depth",
		Help:      "Pending transactions per pipeline shard.",
	}, []string{"shard"})

	PublishBufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "finguard",
		Subsystem: "worker",
		Name:      "publish_buffer_depth",
		Help:      "Risk records waiting in the publisher buffer.",
	})
)
