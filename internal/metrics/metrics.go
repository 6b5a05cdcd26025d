// Package metrics объявляет счетчики Prometheus приложения.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatRequests считает обработанные сообщения чата по результату:
	// ok, quota_exceeded, upstream_error, error.
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_requests_total",
		Help: "Processed chat messages by outcome.",
	}, []string{"outcome"})

	// WebhookEvents считает события платёжного провайдера по виду и результату.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Received billing webhook events by type and outcome.",
	}, []string{"type", "outcome"})
)
