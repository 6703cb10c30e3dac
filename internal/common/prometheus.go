package common

import "github.com/prometheus/client_golang/prometheus"

const (
	HTTPRequestTotal           = "http_requests_total"
	HTTPRequestDurationSeconds = "http_request_duration_seconds"
	ChatMessageTotal           = "chat_messages_total"
	ChatRejectedTotal          = "chat_connections_rejected_total"
	ChatConnectionActive       = "chat_connections_active"
)

var (
	PromGauges = map[string]*prometheus.GaugeVec{
		ChatConnectionActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: ChatConnectionActive,
			Help: "Number of joined chat connections on this node",
		}, []string{}),
	}

	PromCounters = map[string]*prometheus.CounterVec{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestTotal,
			Help: "Count of all HTTP requests",
		}, []string{"path", "status_code"}),
		ChatMessageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ChatMessageTotal,
			Help: "Count of submitted chat messages",
		}, []string{"status"}),
		ChatRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ChatRejectedTotal,
			Help: "Count of rejected chat connections",
		}, []string{"close_code"}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: HTTPRequestDurationSeconds,
			Help: "Duration of all HTTP requests",
		}, []string{"path", "status_code"}),
	}
)
