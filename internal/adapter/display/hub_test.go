package display

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/app"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ app.View = (*Hub)(nil)

// testHub starts a Hub behind a test server that registers every upgraded connection.
func testHub(t *testing.T, maxClients int) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub(clockwork.NewFakeClock(), maxClients)
	t.Cleanup(hub.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := hub.Register(conn); err != nil {
			return
		}
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	return hub, dial
}

func waitForClientCount(hub *Hub, expected int) bool {
	for iter := 0; iter < 200; iter++ {
		if hub.ClientCount() == expected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

type rawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *ws.Conn) rawEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev rawEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func testOrder(number string) domain.OrderRecord {
	return domain.OrderRecord{
		ID:            uuid.New(),
		OrderNumber:   number,
		CapturedFrame: "data:image/jpeg;base64,QUJD",
		Audio:         []byte("audio"),
	}
}

func TestHub_NewClientReceivesSnapshotFirst(t *testing.T) {
	hub, dial := testHub(t, 4)

	order := testOrder("12")
	hub.RenderOrder(order)
	hub.SlotPresented(order)
	hub.RenderLiveFeed(domain.LiveFeedState{On: true, Label: "Live Feed On"})

	// Publishes are ordered before the register command that follows them.
	conn := dial()
	ev := readEvent(t, conn)
	require.Equal(t, EventSnapshot, ev.Type)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(ev.Payload, &snap))
	require.NotNil(t, snap.Order)
	assert.Equal(t, "12", snap.Order.OrderNumber)
	assert.True(t, snap.Order.HasAudio)
	assert.Equal(t, "data:image/jpeg;base64,QUJD", snap.Order.CapturedFrame)
	assert.True(t, snap.SuccessVisible)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, order.ID, snap.Queue[0].Order.ID)
	require.NotNil(t, snap.LiveFeed)
	assert.True(t, snap.LiveFeed.On)
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, dial := testHub(t, 4)

	conn1 := dial()
	conn2 := dial()
	require.True(t, waitForClientCount(hub, 2))

	hub.RenderFeedbackResult(true)

	for _, conn := range []*ws.Conn{conn1, conn2} {
		assert.Equal(t, EventSnapshot, readEvent(t, conn).Type)

		ev := readEvent(t, conn)
		assert.Equal(t, EventFeedback, ev.Type)
		assert.JSONEq(t, `{"accepted": true}`, string(ev.Payload))
	}
}

func TestHub_FramePayloadIsBase64(t *testing.T) {
	hub, dial := testHub(t, 4)
	conn := dial()
	require.True(t, waitForClientCount(hub, 1))
	readEvent(t, conn)

	hub.RenderFrame([]byte("jpeg"))

	ev := readEvent(t, conn)
	assert.Equal(t, EventFrame, ev.Type)
	assert.JSONEq(t, `{"jpeg": "anBlZw=="}`, string(ev.Payload))
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, dial := testHub(t, 4)

	conn1 := dial()
	dial()
	require.True(t, waitForClientCount(hub, 2))

	require.NoError(t, conn1.Close())
	assert.True(t, waitForClientCount(hub, 1))
}

func TestHub_MaxClients(t *testing.T) {
	hub, dial := testHub(t, 1)

	dial()
	require.True(t, waitForClientCount(hub, 1))

	rejected := dial()
	require.NoError(t, rejected.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := rejected.ReadMessage()
	assert.Error(t, err, "the hub closes connections over the limit")
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_StopSendsCloseFrame(t *testing.T) {
	hub, dial := testHub(t, 4)
	conn := dial()
	require.True(t, waitForClientCount(hub, 1))
	readEvent(t, conn)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "got %v", err)
}

func TestHub_RenderAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock(), 4)
	hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for iter := 0; iter < 1000; iter++ {
			hub.RenderBlank()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("render blocked after stop")
	}

	_, err := hub.Snapshot()
	assert.ErrorIs(t, err, ErrHubStopped)
	assert.Zero(t, hub.ClientCount())
}

func TestSnapshot_TracksViewState(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock(), 4)
	t.Cleanup(hub.Stop)

	a, b := testOrder("1"), testOrder("2")
	hub.SlotPresented(a)
	hub.SlotPresented(b)
	hub.SlotAnnouncing(a)

	warn := domain.NotificationRecord{ID: uuid.New(), Subtype: domain.SubtypeWebsocketError}
	hub.RenderNotification(warn)
	hub.RenderScanStatus(domain.ScanStatus{Message: "Turn the label", Severity: domain.SeverityWarning})
	hub.RenderBlank()

	snap, err := hub.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Queue, 2)
	assert.True(t, snap.Queue[0].Announcing)
	assert.False(t, snap.Queue[1].Announcing)
	require.Len(t, snap.Notifications, 1)
	require.NotNil(t, snap.ScanStatus)
	assert.True(t, snap.Blank)

	hub.SlotRemoved(a)
	replacement := domain.NotificationRecord{ID: uuid.New(), Subtype: domain.SubtypeWebsocketError}
	hub.RenderNotification(replacement)
	hub.RenderDefaultStatus()
	hub.RenderFrame([]byte{1})
	hub.HideSuccessMessage()

	snap, err = hub.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, b.ID, snap.Queue[0].Order.ID)
	require.Len(t, snap.Notifications, 1, "one notification per subtype")
	assert.Equal(t, replacement.ID, snap.Notifications[0].ID)
	assert.Nil(t, snap.ScanStatus)
	assert.False(t, snap.Blank)
	assert.False(t, snap.SuccessVisible)

	hub.RemoveNotification(replacement)
	snap, err = hub.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Notifications)
}

func TestHub_FrameBurstKeepsStateEvents(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock(), 4)
	t.Cleanup(hub.Stop)

	orders := make([]domain.OrderRecord, 300)
	for i := range orders {
		orders[i] = testOrder(strconv.Itoa(i))
		hub.SlotPresented(orders[i])
		for iter := 0; iter < 20; iter++ {
			hub.RenderFrame([]byte("jpeg"))
		}
	}
	warn := domain.NotificationRecord{ID: uuid.New(), Subtype: domain.SubtypeNoVideoFrame}
	hub.RenderNotification(warn)
	for _, o := range orders {
		for iter := 0; iter < 20; iter++ {
			hub.RenderFrame([]byte("jpeg"))
		}
		hub.SlotRemoved(o)
	}
	hub.RemoveNotification(warn)

	snap, err := hub.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Queue, "every removal reached the snapshot")
	assert.Empty(t, snap.Notifications)
	assert.False(t, snap.Blank)
}

func TestHub_FramesKeepRenderOrder(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock(), 4)
	t.Cleanup(hub.Stop)

	for iter := 0; iter < 200; iter++ {
		hub.RenderFrame([]byte{1})
		hub.RenderBlank()

		snap, err := hub.Snapshot()
		require.NoError(t, err)
		require.True(t, snap.Blank, "a blank rendered after a frame wins")

		hub.RenderBlank()
		hub.RenderFrame([]byte{2})
		hub.RenderLiveFeed(domain.LiveFeedState{On: true})

		snap, err = hub.Snapshot()
		require.NoError(t, err)
		require.False(t, snap.Blank, "a frame rendered after a blank wins")
	}
}

func TestHub_FrameAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(clockwork.NewFakeClock(), 4)
	hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for iter := 0; iter < 1000; iter++ {
			hub.RenderFrame([]byte{1})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frame render blocked after stop")
	}
}
