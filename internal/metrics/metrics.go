// Package metrics exposes the pipeline's Prometheus counters. Ignored event
// outcomes and signature failures are counted here server-side only; the
// wire responses stay indistinguishable for callers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectsTotal counts collect requests by outcome (collected, rejected).
	CollectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "collects_total",
		Help:      "Collect requests by outcome.",
	}, []string{"outcome"})

	// EventsTotal counts event submissions by outcome and ignore reason.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "events_total",
		Help:      "Event submissions by outcome and ignore reason.",
	}, []string{"outcome", "reason"})

	// SignatureFailuresTotal counts signature and replay failures per path.
	// This is the only place forged submissions become visible.
	SignatureFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "signature_failures_total",
		Help:      "Signature, timestamp and nonce failures by path.",
	}, []string{"path"})

	// LeadCallbacksTotal counts lead callbacks by resulting operation.
	LeadCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "lead_callbacks_total",
		Help:      "Lead callbacks by upsert operation.",
	}, []string{"operation"})

	// ConversionsTotal counts conversion attempts by gate outcome.
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "conversions_total",
		Help:      "Conversion eligibility outcomes.",
	}, []string{"reason"})

	// ClassificationsTotal counts IP classifications by source and category.
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attribution",
		Name:      "ip_classifications_total",
		Help:      "IP classifications by source (cache, provider, fcrdns) and category.",
	}, []string{"source", "category"})
)
