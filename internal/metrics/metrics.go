// Package metrics holds the pipeline's domain counters. It sits outside both
// usecase and infra so either side can record without depending on the other.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leadsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_ingested_total",
			Help: "Leads created or collapsed into existing records",
		},
		[]string{"result"}, // created | duplicate
	)

	emailsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_queued_total",
			Help: "Inbound lead emails accepted into the queue",
		},
	)

	smsOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_outcomes_total",
			Help: "Outbound SMS results by final status",
		},
		[]string{"status"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrier_webhook_events_total",
			Help: "Carrier delivery-status callbacks received",
		},
		[]string{"status"},
	)

	pipelineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Worker-level errors by pipeline",
		},
		[]string{"pipeline"},
	)
)

func RecordLeadIngested(created bool) {
	if created {
		leadsIngested.WithLabelValues("created").Inc()
	} else {
		leadsIngested.WithLabelValues("duplicate").Inc()
	}
}

func RecordEmailQueued() {
	emailsQueued.Inc()
}

func RecordSmsOutcome(status string) {
	smsOutcomes.WithLabelValues(status).Inc()
}

func RecordWebhookEvent(status string) {
	webhookEvents.WithLabelValues(status).Inc()
}

func RecordPipelineError(pipeline string) {
	pipelineErrors.WithLabelValues(pipeline).Inc()
}
