package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OTPIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "Total number of one-time codes issued.",
		},
	)

	OTPVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_verifications_total",
			Help: "Total number of OTP verification attempts.",
		},
		[]string{"result"},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"method", "result"},
	)

	MigrationRemindersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_reminders_sent_total",
			Help: "Total number of password-migration reminders sent.",
		},
	)

	MigrationCompletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_completions_total",
			Help: "Total number of users moved off password auth.",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently open notification connections.",
		},
	)

	WSNotificationsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_notifications_sent_total",
			Help: "Notification messages delivered over WebSocket.",
		},
	)
)

// MustRegister attaches the collectors to the default registerer with a
// constant service label. Code paths touch the vars directly, so tests can
// exercise them without registering anything.
func MustRegister(serviceName string) {
	r := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	r.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		OTPIssuedTotal,
		OTPVerificationsTotal,
		LoginsTotal,
		MigrationRemindersTotal,
		MigrationCompletionsTotal,
		WSConnections,
		WSNotificationsSentTotal,
	)
}
