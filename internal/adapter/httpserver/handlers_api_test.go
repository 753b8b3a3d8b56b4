package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/app"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorBody struct {
	Error   string         `json:"error"`
	Type    string         `json:"type"`
	Context map[string]any `json:"context"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- State ---

func TestHandleState(t *testing.T) {
	order := domain.OrderSummary{ID: uuid.New(), OrderNumber: "42"}
	kiosk := &mockKiosk{statusFn: func(context.Context) (app.Status, error) {
		return app.Status{
			Channels:     map[domain.StreamID]string{domain.StreamOrders: "open"},
			LiveFeed:     domain.LiveFeedState{On: true, Label: "Live Feed On"},
			CurrentOrder: &order,
			Intake:       2,
		}, nil
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	srv := newTestServer(t, kiosk, newMockHub())
	require.NoError(t, srv.handleState(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var got app.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "open", got.Channels[domain.StreamOrders])
	assert.True(t, got.LiveFeed.On)
	require.NotNil(t, got.CurrentOrder)
	assert.Equal(t, "42", got.CurrentOrder.OrderNumber)
	assert.Equal(t, 2, got.Intake)
}

func TestHandleState_LoopStopped(t *testing.T) {
	kiosk := &mockKiosk{statusFn: func(context.Context) (app.Status, error) {
		return app.Status{}, domain.ErrLoopStopped
	}}
	srv := newTestServer(t, kiosk, newMockHub())

	rec := doRequest(srv, http.MethodGet, "/api/state", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decodeError(t, rec).Type)
}

// --- Live feed ---

func TestHandleLiveFeed(t *testing.T) {
	var got *bool
	kiosk := &mockKiosk{setLiveFeedFn: func(_ context.Context, on bool) error {
		got = &on
		return nil
	}}
	srv := newTestServer(t, kiosk, newMockHub())

	rec := doRequest(srv, http.MethodPost, "/api/live-feed", `{"on": true}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"pending","on":true}`, rec.Body.String())
	require.NotNil(t, got)
	assert.True(t, *got)
}

func TestHandleLiveFeed_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		kioskErr   error
		wantStatus int
		wantType   string
	}{
		{"missing on", `{}`, nil, http.StatusBadRequest, "validation"},
		{"malformed body", `{"on":`, nil, http.StatusBadRequest, "validation"},
		{"toggle pending", `{"on": false}`, domain.ErrTogglePending, http.StatusConflict, "conflict"},
		{"control closed", `{"on": true}`, fmt.Errorf("send: %w", domain.ErrChannelNotOpen), http.StatusServiceUnavailable, "unavailable"},
		{"loop busy", `{"on": true}`, context.DeadlineExceeded, http.StatusServiceUnavailable, "unavailable"},
		{"unexpected", `{"on": true}`, errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			kiosk := &mockKiosk{setLiveFeedFn: func(context.Context, bool) error {
				called = true
				return tt.kioskErr
			}}
			srv := newTestServer(t, kiosk, newMockHub())

			rec := doRequest(srv, http.MethodPost, "/api/live-feed", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, decodeError(t, rec).Type)
			if tt.kioskErr == nil {
				assert.False(t, called, "invalid requests never reach the runtime")
			}
		})
	}
}

// --- Feedback ---

func TestHandleFeedback(t *testing.T) {
	srv := newTestServer(t, &mockKiosk{}, newMockHub())

	rec := doRequest(srv, http.MethodPost, "/api/feedback", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"sent"}`, rec.Body.String())
}

func TestHandleFeedback_NoActiveOrder(t *testing.T) {
	kiosk := &mockKiosk{reportIssueFn: func(context.Context) error {
		return domain.ErrNoActiveOrder
	}}
	srv := newTestServer(t, kiosk, newMockHub())

	rec := doRequest(srv, http.MethodPost, "/api/feedback", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.ErrNoActiveOrder.Error(), decodeError(t, rec).Error)
}

// --- Notifications ---

func TestHandleAcknowledge(t *testing.T) {
	id := uuid.New()
	var got uuid.UUID
	kiosk := &mockKiosk{acknowledgeFn: func(_ context.Context, n uuid.UUID) error {
		got = n
		return nil
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	srv := newTestServer(t, kiosk, newMockHub())
	require.NoError(t, srv.handleAcknowledge(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, got)
}

func TestHandleAcknowledge_Errors(t *testing.T) {
	t.Run("bad id", func(t *testing.T) {
		srv := newTestServer(t, &mockKiosk{}, newMockHub())

		rec := doRequest(srv, http.MethodPost, "/api/notifications/not-a-uuid/ack", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "invalid notification id", body.Error)
		assert.Equal(t, "not-a-uuid", body.Context["id"])
	})

	t.Run("already gone", func(t *testing.T) {
		kiosk := &mockKiosk{acknowledgeFn: func(context.Context, uuid.UUID) error {
			return domain.ErrNotificationAbsent
		}}
		srv := newTestServer(t, kiosk, newMockHub())

		rec := doRequest(srv, http.MethodPost, "/api/notifications/"+uuid.NewString()+"/ack", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// --- Channels ---

func TestHandleResetChannel(t *testing.T) {
	var got domain.StreamID
	kiosk := &mockKiosk{resetChannelFn: func(_ context.Context, s domain.StreamID) error {
		got = s
		return nil
	}}
	srv := newTestServer(t, kiosk, newMockHub())

	rec := doRequest(srv, http.MethodPost, "/api/channels/orders/reset", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"connecting","stream":"orders"}`, rec.Body.String())
	assert.Equal(t, domain.StreamOrders, got)
}

func TestHandleResetChannel_Errors(t *testing.T) {
	t.Run("unknown stream name", func(t *testing.T) {
		srv := newTestServer(t, &mockKiosk{}, newMockHub())

		rec := doRequest(srv, http.MethodPost, "/api/channels/audio/reset", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "audio", decodeError(t, rec).Context["stream"])
	})

	t.Run("stream not configured", func(t *testing.T) {
		kiosk := &mockKiosk{resetChannelFn: func(context.Context, domain.StreamID) error {
			return domain.ErrUnknownStream
		}}
		srv := newTestServer(t, kiosk, newMockHub())

		rec := doRequest(srv, http.MethodPost, "/api/channels/video/reset", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// --- Router behaviour ---

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, &mockKiosk{}, newMockHub())

	t.Run("echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set(headerRequestID, "abc-123")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(headerRequestID))
	})

	t.Run("generates id", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/health/live", "")
		assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set(headerRequestID, strings.Repeat("x", 65))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		got := rec.Header().Get(headerRequestID)
		assert.NotEmpty(t, got)
		assert.LessOrEqual(t, len(got), 64)
	})
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &mockKiosk{}, newMockHub())

	rec := doRequest(srv, http.MethodGet, "/api/state", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestAPIRateLimit(t *testing.T) {
	srv := newTestServer(t, &mockKiosk{}, newMockHub(), withRateLimit(0.5, 1))

	first := doRequest(srv, http.MethodPost, "/api/feedback", "")
	second := doRequest(srv, http.MethodPost, "/api/feedback", "")
	state := doRequest(srv, http.MethodGet, "/api/state", "")

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, state.Code, "reads are not rate limited")
}

func TestAPIMetrics(t *testing.T) {
	kiosk := &mockKiosk{reportIssueFn: func(context.Context) error { return domain.ErrNoActiveOrder }}
	srv := newTestServer(t, kiosk, newMockHub())

	doRequest(srv, http.MethodPost, "/api/feedback", "")
	doRequest(srv, http.MethodGet, "/health/live", "")

	conflict, ok := metrics.APIRequestDuration.WithLabelValues(http.MethodPost, "/api/feedback", "409").(prometheus.Histogram)
	require.True(t, ok)
	assert.Equal(t, 1, testutil.CollectAndCount(conflict))
	assert.Zero(t, testutil.ToFloat64(metrics.APIRequestsInFlight))
}

// --- Display socket ---

func TestDisplaySocket(t *testing.T) {
	hub := newMockHub()
	srv := newTestServer(t, &mockKiosk{}, hub)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/view"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	select {
	case <-hub.registered:
	case <-time.After(2 * time.Second):
		t.Fatal("display client was not registered")
	}

	require.NoError(t, conn.Close())

	select {
	case <-hub.gone:
	case <-time.After(2 * time.Second):
		t.Fatal("display client was not unregistered")
	}
}

func TestDisplaySocket_RejectedByHub(t *testing.T) {
	hub := newMockHub()
	hub.registerErr = errors.New("max display clients (1) reached")
	srv := newTestServer(t, &mockKiosk{}, hub)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/view"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestDisplaySocket_ForeignOriginRefused(t *testing.T) {
	srv := newTestServer(t, &mockKiosk{}, newMockHub())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/view"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
