package services

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	xpAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_xp_awarded_total",
			Help: "Total XP granted, by source",
		},
		[]string{"source"},
	)
	sessionsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_sessions_completed_total",
			Help: "Focus sessions completed, by how they ended",
		},
		[]string{"origin"},
	)
	tasksCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focusquest_tasks_completed_total",
			Help: "Tasks marked complete",
		},
	)
	feedbackEmailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusquest_feedback_emails_total",
			Help: "Feedback emails by delivery outcome",
		},
		[]string{"status"},
	)
	hubConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusquest_timer_ws_connections",
			Help: "Open timer websocket connections",
		},
	)
)

// InitMetrics registers the domain metrics. Call once from main.go.
func InitMetrics() {
	prometheus.MustRegister(xpAwardedTotal)
	prometheus.MustRegister(sessionsCompletedTotal)
	prometheus.MustRegister(tasksCompletedTotal)
	prometheus.MustRegister(feedbackEmailsTotal)
	prometheus.MustRegister(hubConnections)
}

// reasonLabel keeps the label set small: "achievement:streak_7" becomes "achievement".
func reasonLabel(reason string) string {
	if i := strings.IndexByte(reason, ':'); i >= 0 {
		return reason[:i]
	}
	return reason
}
