package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/notify-stream/internal/client"
	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/inbox"
	"github.com/notifyhub/notify-stream/internal/protocol"
	"github.com/notifyhub/notify-stream/internal/service"
	"github.com/notifyhub/notify-stream/internal/stream"
)

const namespace = "notify_stream"

// Fallback label values. Discriminators and severities come from the peer,
// so anything outside the known set shares one series.
const (
	unknownType   = "unknown"
	otherSeverity = "other"
)

func typeLabel(kind string) string {
	if protocol.KnownType(kind) {
		return kind
	}
	return unknownType
}

func severityLabel(sev domain.Severity) string {
	if sev.IsValid() {
		return string(sev)
	}
	return otherSeverity
}

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	FramesSent             *prometheus.CounterVec
	FramesReceived         *prometheus.CounterVec
	DecodeFailures         prometheus.Counter
	DriverExits            *prometheus.CounterVec
	ConnectAttempts        prometheus.Counter
	ConnectFailures        prometheus.Counter
	SessionUp              prometheus.Gauge
	InboxItems             prometheus.Gauge
	InboxUnread            prometheus.Gauge
	NotificationsDisplayed *prometheus.CounterVec
	NotificationsForwarded *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Control messages written to the notification socket.",
		}, []string{"type"}),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Messages decoded from the notification socket, by discriminator.",
		}, []string{"type"}),

		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Inbound frames that could not be decoded and were skipped.",
		}),

		DriverExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_exits_total",
			Help:      "Connection drivers that ended, by reason.",
		}, []string{"reason"}),

		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts made to the notification service.",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Connection attempts that failed at the transport level.",
		}),

		SessionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_up",
			Help:      "1 while a notification session is live.",
		}),
		InboxItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_items",
			Help:      "Distinct notifications held in the inbox.",
		}),
		InboxUnread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_unread",
			Help:      "Inbox notifications not yet marked read.",
		}),

		NotificationsDisplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_displayed_total",
			Help:      "Live notifications shown to the user, by severity.",
		}, []string{"severity"}),
		NotificationsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_forwarded_total",
			Help:      "Displayed notifications posted to the forwarding webhook, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.FramesSent,
		m.FramesReceived,
		m.DecodeFailures,
		m.DriverExits,
		m.ConnectAttempts,
		m.ConnectFailures,
		m.SessionUp,
		m.InboxItems,
		m.InboxUnread,
		m.NotificationsDisplayed,
		m.NotificationsForwarded,
	)

	return m
}

// DriverHooks returns the callbacks expected by stream.WithHooks.
func (m *Metrics) DriverHooks() stream.Hooks {
	return stream.Hooks{
		OnFrameSent: func(kind string) {
			m.FramesSent.WithLabelValues(typeLabel(kind)).Inc()
		},
		OnFrameReceived: func(kind string) {
			m.FramesReceived.WithLabelValues(typeLabel(kind)).Inc()
		},
		OnDecodeFailure: func() {
			m.DecodeFailures.Inc()
		},
		OnExit: func(reason string) {
			m.DriverExits.WithLabelValues(reason).Inc()
		},
	}
}

// ClientHooks returns the client callbacks, with DriverHooks attached so
// every connection the client creates is instrumented.
func (m *Metrics) ClientHooks() client.Hooks {
	return client.Hooks{
		OnConnectAttempt: m.ConnectAttempts.Inc,
		OnConnectFailure: m.ConnectFailures.Inc,
		Driver:           m.DriverHooks(),
	}
}

func (m *Metrics) ServiceHooks() service.Hooks {
	return service.Hooks{
		OnSession: func(up bool) {
			if up {
				m.SessionUp.Set(1)
				return
			}
			m.SessionUp.Set(0)
		},
		OnInbox: func(s inbox.Stats) {
			m.InboxItems.Set(float64(s.Total))
			m.InboxUnread.Set(float64(s.Unread))
		},
		OnDisplayed: func(sev domain.Severity) {
			m.NotificationsDisplayed.WithLabelValues(severityLabel(sev)).Inc()
		},
	}
}

// ForwarderHooks returns the callbacks expected by provider.NewForwarder.
func (m *Metrics) ForwarderHooks() (onForwarded, onFailed func()) {
	onForwarded = func() {
		m.NotificationsForwarded.WithLabelValues("ok").Inc()
	}
	onFailed = func() {
		m.NotificationsForwarded.WithLabelValues("failed").Inc()
	}
	return
}
