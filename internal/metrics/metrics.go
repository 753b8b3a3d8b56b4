package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event loop metrics
var (
	// LoopHandlersTotal tracks handlers run on the event loop by origin (posted/timer)
	LoopHandlersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_loop_handlers_total",
			Help: "Total handlers executed on the event loop by origin",
		},
		[]string{"origin"},
	)

	// LoopHandlerDuration tracks how long a single handler holds the loop
	LoopHandlerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_loop_handler_duration_seconds",
			Help:    "Time a single handler held the event loop",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// LoopPanicsTotal tracks handler panics recovered by the loop
	LoopPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_loop_panics_total",
			Help: "Total handler panics recovered by the event loop",
		},
	)

	// LoopInboxDepth tracks queued closures waiting for the loop
	LoopInboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_loop_inbox_depth",
			Help: "Closures waiting to run on the event loop",
		},
	)

	// LoopTimersActive tracks armed timers
	LoopTimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_loop_timers_active",
			Help: "Timers currently armed on the event loop",
		},
	)
)

// Channel metrics
var (
	// ChannelState tracks the current state per stream (0=closed, 1=connecting, 2=open, 3=failed)
	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiosk_channel_state",
			Help: "Current channel state (0=closed, 1=connecting, 2=open, 3=failed)",
		},
		[]string{"stream"},
	)

	// ChannelConnectAttempts tracks dial attempts per stream
	ChannelConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_connect_attempts_total",
			Help: "Total dial attempts by stream",
		},
		[]string{"stream"},
	)

	// ChannelProbeRetries tracks probe ticks that found the channel still connecting
	ChannelProbeRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_probe_retries_total",
			Help: "Probe ticks that found the channel still connecting",
		},
		[]string{"stream"},
	)

	// ChannelFailures tracks channels that exhausted their retries
	ChannelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_failures_total",
			Help: "Channels that exhausted their handshake retries",
		},
		[]string{"stream"},
	)

	// ChannelReconnectsScheduled tracks reconnects scheduled after a close
	ChannelReconnectsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_reconnects_scheduled_total",
			Help: "Reconnects scheduled after a channel closed",
		},
		[]string{"stream"},
	)

	// ChannelMessagesReceived tracks inbound messages per stream
	ChannelMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_messages_received_total",
			Help: "Inbound messages by stream",
		},
		[]string{"stream"},
	)

	// ChannelMessagesSent tracks outbound messages per stream and status
	ChannelMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_messages_sent_total",
			Help: "Outbound messages by stream and status",
		},
		[]string{"stream", "status"},
	)

	// ChannelDecodeFailures tracks dropped payloads that failed to decode
	ChannelDecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_channel_decode_failures_total",
			Help: "Inbound payloads dropped because they failed to decode",
		},
		[]string{"stream"},
	)

	// ChannelPingFailures tracks keepalive ping write failures
	ChannelPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_channel_ping_failures_total",
			Help: "Keepalive ping writes that failed",
		},
	)
)

// Announcement metrics
var (
	// IntakeDepth tracks orders waiting for a presentation slot
	IntakeDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_announce_intake_depth",
			Help: "Orders waiting for a presentation slot",
		},
	)

	// PresentationDepth tracks occupied presentation slots
	PresentationDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_announce_presentation_depth",
			Help: "Occupied presentation slots",
		},
	)

	// AnnouncementsTotal tracks evicted orders by outcome (played/silent/failed)
	AnnouncementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_announcements_total",
			Help: "Orders evicted from presentation by outcome",
		},
		[]string{"outcome"},
	)

	// PlaybackDuration tracks announcement playback time
	PlaybackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_announce_playback_duration_seconds",
			Help:    "Announcement playback duration in seconds",
			Buckets: []float64{.5, 1, 2, 3, 5, 8, 13, 30},
		},
	)
)

// Diagnostic metrics
var (
	// DiagnosticsTotal tracks diagnostics by category and decision (accepted/stale/superseded/unknown)
	DiagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_diagnostics_total",
			Help: "Diagnostics observed by category and decision",
		},
		[]string{"category", "decision"},
	)

	// NotificationsUnacknowledged tracks notifications awaiting dismissal
	NotificationsUnacknowledged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_notifications_unacknowledged",
			Help: "Notifications awaiting operator dismissal",
		},
	)

	// ControlRequestsTotal tracks live-feed toggle requests by command and outcome
	ControlRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_control_requests_total",
			Help: "Live-feed toggle requests by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	// FeedbackReportsTotal tracks issue reports by outcome
	FeedbackReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_feedback_reports_total",
			Help: "Issue reports by outcome",
		},
		[]string{"outcome"},
	)
)

// Display hub metrics
var (
	// DisplayClientsCurrent tracks connected display clients
	DisplayClientsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_display_clients_current",
			Help: "Connected display clients",
		},
	)

	// DisplaySlowClientsEvicted tracks display clients dropped for falling behind
	DisplaySlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_display_slow_clients_evicted_total",
			Help: "Display clients disconnected because their buffer filled",
		},
	)

	// DisplayFramesCoalesced tracks frames replaced before the hub picked them up
	DisplayFramesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_display_frames_coalesced_total",
			Help: "Video frames superseded by a newer frame before broadcast",
		},
	)

	// DisplayEventsTotal tracks view events broadcast by type
	DisplayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_display_events_total",
			Help: "View events broadcast to display clients by type",
		},
		[]string{"type"},
	)
)

// Operator API metrics
var (
	// APIRequestDuration tracks operator API latency by method, route and status
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiosk_api_request_duration_seconds",
			Help:    "Operator API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// APIRequestsInFlight tracks operator API requests being served
	APIRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiosk_api_requests_in_flight",
			Help: "Operator API requests currently being served",
		},
	)
)
