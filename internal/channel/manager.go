package channel

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
)

// Routes receive decoded inbound traffic and channel lifecycle events on the event loop.
// Nil routes drop their messages.
type Routes struct {
	Frame       func(domain.VideoFrame)
	Order       func(domain.OrderMessage)
	Status      func(domain.DiagnosticEvent)
	FeedbackAck func(domain.FeedbackAck)
	Control     func(domain.ControlMessage)

	// Failure receives the single WEBSOCKET_ERROR of a channel that exhausted its retries.
	Failure func(domain.StreamID, domain.DiagnosticEvent)
	// Closed is told about every close, including a failed handshake, before the
	// reconnect is scheduled.
	Closed func(domain.StreamID)
}

// ManagerConfig configures the backend endpoints and reconnect policy.
type ManagerConfig struct {
	Endpoints     map[domain.StreamID]string
	RetryDelay    time.Duration
	ProbeInterval time.Duration
	MaxRetries    int
	Header        http.Header
}

var encodings = map[domain.StreamID]domain.Encoding{
	domain.StreamVideo:    domain.EncodingBinary,
	domain.StreamOrders:   domain.EncodingJSON,
	domain.StreamStatus:   domain.EncodingJSON,
	domain.StreamFeedback: domain.EncodingJSON,
	domain.StreamControl:  domain.EncodingJSON,
}

// Manager owns one Channel per stream. A closed channel is reopened after RetryDelay,
// without limit. A Failed channel reports its failure once and is then retried the
// same way. Methods must be called on the event loop.
type Manager struct {
	loop       *eventloop.Loop
	routes     Routes
	retryDelay time.Duration
	channels   map[domain.StreamID]*Channel
	reconnects map[domain.StreamID]*eventloop.Timer
}

func NewManager(loop *eventloop.Loop, dialer Dialer, cfg ManagerConfig, routes Routes) *Manager {
	m := &Manager{
		loop:       loop,
		routes:     routes,
		retryDelay: cfg.RetryDelay,
		channels:   make(map[domain.StreamID]*Channel, len(domain.Streams)),
		reconnects: make(map[domain.StreamID]*eventloop.Timer, len(domain.Streams)),
	}

	for _, id := range domain.Streams {
		id := id // per-iteration copy for the callbacks below (pre-Go 1.22 loop semantics)
		endpoint, ok := cfg.Endpoints[id]
		if !ok {
			continue
		}
		m.channels[id] = New(loop, dialer, Options{
			ID:            id,
			Endpoint:      endpoint,
			Encoding:      encodings[id],
			ProbeInterval: cfg.ProbeInterval,
			MaxRetries:    cfg.MaxRetries,
			Header:        cfg.Header,
		}, Callbacks{
			OnMessage: m.dispatch,
			OnClose:   func() { m.closed(id) },
			OnFailure: func(ev domain.DiagnosticEvent) { m.failed(id, ev) },
		})
	}

	return m
}

// Start opens every channel.
func (m *Manager) Start() {
	for _, id := range domain.Streams {
		if ch, ok := m.channels[id]; ok {
			ch.Open()
		}
	}
}

// Stop closes every channel and cancels pending reconnects.
func (m *Manager) Stop() {
	for id, timer := range m.reconnects {
		timer.Stop()
		delete(m.reconnects, id)
	}
	for _, ch := range m.channels {
		ch.Close()
	}
}

// Send encodes v in the stream's encoding and queues it on the open channel.
func (m *Manager) Send(stream domain.StreamID, v any) error {
	ch, ok := m.channels[stream]
	if !ok {
		return fmt.Errorf("send on %q: %w", stream, domain.ErrUnknownStream)
	}

	payload, err := Encode(ch.opts.Encoding, v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", stream, err)
	}

	if err := ch.Send(payload); err != nil {
		return fmt.Errorf("send on %s: %w", stream, err)
	}
	return nil
}

// Reset drops any connection or pending reconnect for stream and starts a fresh
// handshake without waiting for the retry delay.
func (m *Manager) Reset(stream domain.StreamID) error {
	ch, ok := m.channels[stream]
	if !ok {
		return fmt.Errorf("reset %q: %w", stream, domain.ErrUnknownStream)
	}

	m.reconnects[stream].Stop()
	delete(m.reconnects, stream)

	slog.Info("Channel reset requested", "stream", stream, "state", ch.State())
	ch.Close()
	ch.Open()
	return nil
}

// States reports the current state of every channel.
func (m *Manager) States() map[domain.StreamID]domain.ChannelState {
	states := make(map[domain.StreamID]domain.ChannelState, len(m.channels))
	for id, ch := range m.channels {
		states[id] = ch.State()
	}
	return states
}

func (m *Manager) closed(id domain.StreamID) {
	if m.routes.Closed != nil {
		m.routes.Closed(id)
	}
	m.scheduleReopen(id)
}

func (m *Manager) scheduleReopen(id domain.StreamID) {
	m.reconnects[id].Stop()
	m.reconnects[id] = m.loop.AfterFunc(m.retryDelay, func() {
		delete(m.reconnects, id)
		m.channels[id].Open()
	})
	metrics.ChannelReconnectsScheduled.WithLabelValues(string(id)).Inc()
	slog.Debug("Channel reconnect scheduled", "stream", id, "delay", m.retryDelay)
}

func (m *Manager) failed(id domain.StreamID, ev domain.DiagnosticEvent) {
	if m.routes.Failure != nil {
		m.routes.Failure(id, ev)
	}
	m.closed(id)
}

func (m *Manager) dispatch(env domain.Envelope) {
	msg, err := Decode(env)
	if err != nil {
		metrics.ChannelDecodeFailures.WithLabelValues(string(env.ChannelID)).Inc()
		slog.Warn("Dropping undecodable message", "stream", env.ChannelID, "bytes", len(env.Payload), "error", err)
		return
	}

	switch v := msg.(type) {
	case domain.VideoFrame:
		if m.routes.Frame != nil {
			m.routes.Frame(v)
		}
	case domain.OrderMessage:
		if m.routes.Order != nil {
			m.routes.Order(v)
		}
	case domain.DiagnosticEvent:
		if m.routes.Status != nil {
			m.routes.Status(v)
		}
	case domain.FeedbackAck:
		if m.routes.FeedbackAck != nil {
			m.routes.FeedbackAck(v)
		}
	case domain.ControlMessage:
		if m.routes.Control != nil {
			m.routes.Control(v)
		}
	}
}
