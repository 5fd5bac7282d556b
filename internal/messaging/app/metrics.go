package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboundWebhooksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "inbound_webhooks_total",
			Help:      "Inbound message webhooks received.",
		},
		[]string{"provider_name", "outcome"}, // outcome: "recorded", "dropped_unknown_number", "rejected_signature", "malformed", "error"
	)

	statusWebhooksCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "status_webhooks_total",
			Help:      "Delivery-status webhooks received.",
		},
		[]string{"provider_name", "outcome"}, // outcome: "applied", "stale", "unknown_message", "malformed", "error"
	)

	statusUnknownMessageCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "status_unknown_message_total",
			Help:      "Status webhooks referencing a message this deployment does not track.",
		},
		[]string{"provider_name"},
	)

	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "messaging",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of calls to SMS providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name", "operation"}, // operation: "search", "purchase", "attach", "send"
	)

	provisioningOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "provisioning_total",
			Help:      "Number provisioning workflow outcomes.",
		},
		[]string{"provider_name", "outcome"}, // outcome: "purchased", "attach_pending", "unavailable", "error"
	)

	messagesSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "messages_sent_total",
			Help:      "Outbound send attempts by result.",
		},
		[]string{"provider_name", "result"}, // result: "sent", "rejected", "provider_unavailable"
	)
)
