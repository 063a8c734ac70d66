// Package metrics provides Prometheus metrics for the interview client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview_call"

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    *prometheus.CounterVec

	QuestionsReceived prometheus.Counter
	AnswersSubmitted  prometheus.Counter
	EmptyAnswers      prometheus.Counter
	TurnDuration      prometheus.Histogram

	PlaybackErrors prometheus.Counter
	ProtocolErrors *prometheus.CounterVec
	TransportUp    prometheus.Gauge
	FramesSent     prometheus.Counter
	FramesDropped  prometheus.Counter
}

// Default is the process-wide metrics instance.
var Default = New()

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of interview sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of sessions terminated with feedback",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in a failed state",
		}, []string{"kind"}),
		QuestionsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_received_total",
			Help:      "Total number of question events received",
		}),
		AnswersSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Total number of submit_answer frames sent",
		}),
		EmptyAnswers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_answers_total",
			Help:      "Total number of answers submitted with an empty transcript",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of one speak/listen turn in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
		PlaybackErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_errors_total",
			Help:      "Total number of playback errors treated as turn completion",
		}),
		ProtocolErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of dropped inbound frames",
		}, []string{"reason"}),
		TransportUp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_up",
			Help:      "Whether the session transport is currently connected",
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of outbound frames written to the transport",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of outbound frames dropped while disconnected",
		}),
	}
}
