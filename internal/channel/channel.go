// Package channel keeps one reconnecting WebSocket per backend stream and routes
// decoded messages to the runtime components.
package channel

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
	"github.com/gorilla/websocket"
)

// Dialer opens backend connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Options describe one backend endpoint.
type Options struct {
	ID            domain.StreamID
	Endpoint      string
	Encoding      domain.Encoding
	ProbeInterval time.Duration
	MaxRetries    int
	Header        http.Header
}

// Callbacks are invoked on the event loop.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(domain.Envelope)
	OnClose   func()
	OnFailure func(domain.DiagnosticEvent)
}

// Channel is a single logical connection to one backend endpoint. All methods must
// be called on the event loop.
//
// While Connecting a probe fires every ProbeInterval and counts retries. Exceeding
// MaxRetries cancels the handshake and leaves the channel Failed, reporting exactly
// one WEBSOCKET_ERROR through OnFailure. Any other loss of the connection reports
// OnClose. Either way the owner decides when to Open again.
type Channel struct {
	opts   Options
	loop   *eventloop.Loop
	dialer Dialer
	cb     Callbacks

	state      domain.ChannelState
	retries    int
	gen        uint64
	probe      *eventloop.Timer
	cancelDial context.CancelFunc
	writer     *connWriter
}

func New(loop *eventloop.Loop, dialer Dialer, opts Options, cb Callbacks) *Channel {
	c := &Channel{opts: opts, loop: loop, dialer: dialer, cb: cb}
	metrics.ChannelState.WithLabelValues(string(opts.ID)).Set(float64(domain.ChannelClosed))
	return c
}

func (c *Channel) ID() domain.StreamID        { return c.opts.ID }
func (c *Channel) State() domain.ChannelState { return c.state }
func (c *Channel) Retries() int               { return c.retries }

// Open starts a handshake unless one is in flight or the channel is already open.
func (c *Channel) Open() {
	if c.state == domain.ChannelConnecting || c.state == domain.ChannelOpen {
		return
	}

	c.gen++
	gen := c.gen
	c.setState(domain.ChannelConnecting)
	c.probe.Stop()
	c.probe = c.loop.Every(c.opts.ProbeInterval, c.probeTick)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	metrics.ChannelConnectAttempts.WithLabelValues(string(c.opts.ID)).Inc()
	slog.Debug("Channel connecting", "stream", c.opts.ID, "endpoint", c.opts.Endpoint)

	go func() {
		conn, _, err := c.dialer.DialContext(ctx, c.opts.Endpoint, c.opts.Header)
		if !c.loop.Post(func() { c.dialed(gen, conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

// Send queues payload on the open connection.
func (c *Channel) Send(payload []byte) error {
	if c.state != domain.ChannelOpen || c.writer == nil {
		metrics.ChannelMessagesSent.WithLabelValues(string(c.opts.ID), "not_open").Inc()
		return domain.ErrChannelNotOpen
	}
	return c.writer.send(payload)
}

// Close tears the channel down without reporting a close. The owner may Open it again.
func (c *Channel) Close() {
	c.gen++
	c.stopDial()
	c.probe.Stop()
	c.releaseWriter("closing")
	c.setState(domain.ChannelClosed)
}

func (c *Channel) dialed(gen uint64, conn *websocket.Conn, err error) {
	if gen != c.gen || c.state != domain.ChannelConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.stopDial()

	if err != nil {
		slog.Warn("Channel dial failed", "stream", c.opts.ID, "endpoint", c.opts.Endpoint, "error", err)
		c.lost()
		return
	}

	c.probe.Stop()
	c.retries = 0
	c.writer = newConnWriter(conn, c.loop.Clock(), c.opts.ID, c.opts.Encoding)
	c.setState(domain.ChannelOpen)
	slog.Info("Channel open", "stream", c.opts.ID)

	go c.readLoop(gen, conn)

	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}
}

func (c *Channel) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.loop.Post(func() { c.readFailed(gen, err) })
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongDeadline))

		if !c.loop.Post(func() { c.received(gen, data) }) {
			_ = conn.Close()
			return
		}
	}
}

func (c *Channel) received(gen uint64, data []byte) {
	if gen != c.gen || c.state != domain.ChannelOpen {
		return
	}
	metrics.ChannelMessagesReceived.WithLabelValues(string(c.opts.ID)).Inc()
	if c.cb.OnMessage != nil {
		c.cb.OnMessage(domain.Envelope{ChannelID: c.opts.ID, Encoding: c.opts.Encoding, Payload: data})
	}
}

func (c *Channel) readFailed(gen uint64, err error) {
	if gen != c.gen || c.state != domain.ChannelOpen {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Info("Channel closed by backend", "stream", c.opts.ID)
	} else {
		slog.Warn("Channel connection lost", "stream", c.opts.ID, "error", err)
	}
	c.releaseWriter("connection lost")
	c.lost()
}

func (c *Channel) probeTick() {
	if c.state != domain.ChannelConnecting {
		c.probe.Stop()
		return
	}

	c.retries++
	metrics.ChannelProbeRetries.WithLabelValues(string(c.opts.ID)).Inc()
	if c.retries <= c.opts.MaxRetries {
		return
	}

	c.gen++
	c.stopDial()
	c.probe.Stop()
	c.retries = 0
	c.setState(domain.ChannelFailed)
	metrics.ChannelFailures.WithLabelValues(string(c.opts.ID)).Inc()
	slog.Error("Channel handshake retries exhausted", "stream", c.opts.ID, "max_retries", c.opts.MaxRetries)

	if c.cb.OnFailure != nil {
		c.cb.OnFailure(domain.SystemError(domain.SubtypeWebsocketError, c.loop.Now()))
	}
}

func (c *Channel) lost() {
	c.probe.Stop()
	c.setState(domain.ChannelClosed)
	if c.cb.OnClose != nil {
		c.cb.OnClose()
	}
}

func (c *Channel) stopDial() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
}

func (c *Channel) releaseWriter(reason string) {
	if c.writer == nil {
		return
	}
	// stop may wait on a blocked write; keep it off the loop.
	go c.writer.stop(reason)
	c.writer = nil
}

func (c *Channel) setState(s domain.ChannelState) {
	c.state = s
	metrics.ChannelState.WithLabelValues(string(c.opts.ID)).Set(float64(s))
}
