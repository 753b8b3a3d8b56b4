package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

var ErrHubStopped = errors.New("display hub stopped")

// --- Command types ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type publishCmd struct {
	baseHubCmd
	seq   uint64
	event Event
}

type pendingFrame struct {
	seq  uint64
	jpeg []byte
}

type snapshotCmd struct {
	baseHubCmd
	replyChannel chan Snapshot
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub fans view events out to local display clients. It implements every renderer
// the runtime draws on. Video frames pass through a one-slot mailbox where a newer
// frame replaces an undelivered one. Every other event is delivered in order.
//
// The hub is an actor: one goroutine owns the client set and the snapshot, and
// everything else talks to it over the command channel.
type Hub struct {
	cmdCh      chan hubCmd
	frameCh    chan pendingFrame
	seq        atomic.Uint64
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*clientWriter
	snapshot   Snapshot
	maxClients int
	done       chan struct{}
}

func NewHub(clock clockwork.Clock, maxClients int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		frameCh:    make(chan pendingFrame, 1),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*clientWriter),
		snapshot:   Snapshot{Queue: []SlotView{}, Notifications: []domain.NotificationRecord{}},
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a display client. It receives the current snapshot first.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if err := h.send(registerCmd{connection: conn, errorChannel: errCh}); err != nil {
		return err
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return ErrHubStopped
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	_ = h.send(unregisterCmd{connection: conn})
}

// Snapshot returns the latest view state.
func (h *Hub) Snapshot() (Snapshot, error) {
	replyCh := make(chan Snapshot, 1)
	if err := h.send(snapshotCmd{replyChannel: replyCh}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-replyCh:
		return s, nil
	case <-h.done:
		return Snapshot{}, ErrHubStopped
	}
}

// ClientCount returns the number of connected display clients.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if err := h.send(clientCountCmd{replyChannel: replyCh}); err != nil {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

// Stop closes every client and waits for the hub goroutine to exit.
func (h *Hub) Stop() {
	if err := h.send(stopCmd{}); err != nil {
		return
	}

	timeout := h.clock.NewTimer(stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Display hub stopped")
	case <-timeout.Chan():
		slog.Warn("Display hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) send(cmd hubCmd) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// publish queues a state event. It only waits when the hub is more than a command
// buffer behind, and gives up once the hub has stopped.
func (h *Hub) publish(ev Event) {
	_ = h.send(publishCmd{seq: h.seq.Add(1), event: ev})
}

// publishFrame leaves jpeg in the frame mailbox, replacing a frame the hub has not
// picked up yet.
func (h *Hub) publishFrame(jpeg []byte) {
	f := pendingFrame{seq: h.seq.Add(1), jpeg: jpeg}
	for {
		select {
		case <-h.done:
			return
		case h.frameCh <- f:
			return
		default:
		}
		select {
		case <-h.frameCh:
			metrics.DisplayFramesCoalesced.Inc()
		default:
		}
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		var cmd hubCmd
		select {
		case f := <-h.frameCh:
			var stopped bool
			if cmd, stopped = h.catchUp(f); stopped {
				return
			}
			if cmd == nil {
				continue
			}
		case cmd = <-h.cmdCh:
		}

		if h.dispatch(cmd) {
			return
		}
	}
}

// catchUp delivers every event rendered before f, then f. Render calls come from one
// goroutine, so those events are already queued by the time f is received. The first
// event rendered after f is returned undelivered.
func (h *Hub) catchUp(f pendingFrame) (next hubCmd, stopped bool) {
	for {
		select {
		case cmd := <-h.cmdCh:
			pc, ok := cmd.(publishCmd)
			switch {
			case ok && pc.seq > f.seq:
				h.handleFrame(f)
				return cmd, false
			case ok:
				h.handlePublish(pc.event)
			case h.dispatch(cmd):
				return nil, true
			}
		default:
			h.handleFrame(f)
			return nil, false
		}
	}
}

func (h *Hub) dispatch(cmd hubCmd) (stopped bool) {
	switch c := cmd.(type) {
	case registerCmd:
		h.handleRegister(c)
	case unregisterCmd:
		h.handleUnregister(c.connection)
	case publishCmd:
		h.handleOrdered(c)
	case snapshotCmd:
		c.replyChannel <- h.snapshot.clone()
	case clientCountCmd:
		c.replyChannel <- len(h.clients)
	case stopCmd:
		h.handleStop()
		return true
	}
	return false
}

// handleOrdered publishes c, keeping a waiting frame on its side of c in render order.
func (h *Hub) handleOrdered(c publishCmd) {
	select {
	case f := <-h.frameCh:
		if f.seq < c.seq {
			h.handleFrame(f)
			h.handlePublish(c.event)
			return
		}
		h.handlePublish(c.event)
		select {
		case h.frameCh <- f:
		default:
			// A newer frame arrived meanwhile.
			metrics.DisplayFramesCoalesced.Inc()
		}
	default:
		h.handlePublish(c.event)
	}
}

func (h *Hub) handleFrame(f pendingFrame) {
	h.handlePublish(Event{Type: EventFrame, Payload: FramePayload{JPEG: f.jpeg}})
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting display client: max clients reached", "max_clients", h.maxClients)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("max display clients (%d) reached", h.maxClients)
		return
	}

	data, err := json.Marshal(Event{Type: EventSnapshot, Payload: h.snapshot})
	if err != nil {
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("marshal snapshot: %w", err)
		return
	}

	cw := newClientWriter(c.connection, h.clock)
	cw.trySend(data)
	h.clients[c.connection] = cw
	metrics.DisplayClientsCurrent.Set(float64(len(h.clients)))

	slog.Debug("Display client registered", "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)
	metrics.DisplayClientsCurrent.Set(float64(len(h.clients)))
	slog.Debug("Display client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handlePublish(ev Event) {
	h.snapshot.apply(ev)
	metrics.DisplayEventsTotal.WithLabelValues(ev.Type).Inc()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal view event", "type", ev.Type, "error", err)
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		if !cw.trySend(data) {
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow display client")
		metrics.DisplaySlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stopGraceful("kiosk shutting down")
		delete(h.clients, conn)
	}
	metrics.DisplayClientsCurrent.Set(0)
}

// --- Renderers ---

func (h *Hub) RenderOrder(o domain.OrderRecord) {
	h.publish(Event{Type: EventOrder, Payload: orderView(o)})
}

func (h *Hub) HideSuccessMessage() {
	h.publish(Event{Type: EventHideSuccess})
}

func (h *Hub) SlotPresented(o domain.OrderRecord) {
	h.publish(Event{Type: EventSlotPresented, Payload: orderView(o)})
}

func (h *Hub) SlotAnnouncing(o domain.OrderRecord) {
	h.publish(Event{Type: EventSlotAnnouncing, Payload: orderView(o)})
}

func (h *Hub) SlotRemoved(o domain.OrderRecord) {
	h.publish(Event{Type: EventSlotRemoved, Payload: orderView(o)})
}

func (h *Hub) RenderNotification(r domain.NotificationRecord) {
	h.publish(Event{Type: EventNotification, Payload: r})
}

func (h *Hub) RemoveNotification(r domain.NotificationRecord) {
	h.publish(Event{Type: EventNotificationRemoved, Payload: r})
}

func (h *Hub) RenderScanStatus(s domain.ScanStatus) {
	h.publish(Event{Type: EventScanStatus, Payload: s})
}

func (h *Hub) RenderDefaultStatus() {
	h.publish(Event{Type: EventDefaultStatus})
}

func (h *Hub) RenderFrame(jpeg []byte) {
	h.publishFrame(jpeg)
}

func (h *Hub) RenderBlank() {
	h.publish(Event{Type: EventBlank})
}

func (h *Hub) RenderLiveFeed(s domain.LiveFeedState) {
	h.publish(Event{Type: EventLiveFeed, Payload: s})
}

func (h *Hub) RenderFeedbackResult(accepted bool) {
	h.publish(Event{Type: EventFeedback, Payload: FeedbackPayload{Accepted: accepted}})
}
