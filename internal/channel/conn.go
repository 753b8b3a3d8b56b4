package channel

import (
	"sync"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline  = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongDeadline   = 60 * time.Second
	sendBufferSize = 32
)

// connWriter owns all writes to one backend connection. Writes happen on its own
// goroutine so a stalled backend never blocks the event loop.
type connWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	stream      domain.StreamID
	messageType int
	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newConnWriter(connection *websocket.Conn, clock clockwork.Clock, stream domain.StreamID, encoding domain.Encoding) *connWriter {
	messageType := websocket.TextMessage
	if encoding == domain.EncodingBinary {
		messageType = websocket.BinaryMessage
	}

	cw := &connWriter{
		connection:  connection,
		clock:       clock,
		stream:      stream,
		messageType: messageType,
		sendChannel: make(chan []byte, sendBufferSize),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *connWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(cw.messageType, msg); err != nil {
				metrics.ChannelMessagesSent.WithLabelValues(string(cw.stream), "error").Inc()
				// Closing unblocks the reader, which reports the loss to the loop.
				_ = cw.connection.Close()
				return
			}
			metrics.ChannelMessagesSent.WithLabelValues(string(cw.stream), "ok").Inc()
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.ChannelPingFailures.Inc()
				_ = cw.connection.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// send queues msg without blocking.
func (cw *connWriter) send(msg []byte) error {
	select {
	case <-cw.doneChannel:
		return domain.ErrChannelNotOpen
	default:
	}

	select {
	case cw.sendChannel <- msg:
		return nil
	default:
		metrics.ChannelMessagesSent.WithLabelValues(string(cw.stream), "dropped").Inc()
		return domain.ErrSendBufferFull
	}
}

// stop sends a close frame and closes the connection once the writer has exited.
func (cw *connWriter) stop(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

// Deadlines are wall-clock: the net package knows no other clock.
func (cw *connWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *connWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
}

func (cw *connWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(time.Now().Add(pongDeadline))
}
