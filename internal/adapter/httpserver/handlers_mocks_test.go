package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/app"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// --- Mock implementations ---

type mockKiosk struct {
	setLiveFeedFn  func(ctx context.Context, on bool) error
	reportIssueFn  func(ctx context.Context) error
	acknowledgeFn  func(ctx context.Context, id uuid.UUID) error
	resetChannelFn func(ctx context.Context, stream domain.StreamID) error
	statusFn       func(ctx context.Context) (app.Status, error)
}

func (m *mockKiosk) SetLiveFeed(ctx context.Context, on bool) error {
	if m.setLiveFeedFn != nil {
		return m.setLiveFeedFn(ctx, on)
	}
	return nil
}

func (m *mockKiosk) ReportIssue(ctx context.Context) error {
	if m.reportIssueFn != nil {
		return m.reportIssueFn(ctx)
	}
	return nil
}

func (m *mockKiosk) AcknowledgeNotification(ctx context.Context, id uuid.UUID) error {
	if m.acknowledgeFn != nil {
		return m.acknowledgeFn(ctx, id)
	}
	return nil
}

func (m *mockKiosk) ResetChannel(ctx context.Context, stream domain.StreamID) error {
	if m.resetChannelFn != nil {
		return m.resetChannelFn(ctx, stream)
	}
	return nil
}

func (m *mockKiosk) Status(ctx context.Context) (app.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return app.Status{Channels: map[domain.StreamID]string{}}, nil
}

type mockHub struct {
	registerErr error
	registered  chan *websocket.Conn
	gone        chan *websocket.Conn
}

func newMockHub() *mockHub {
	return &mockHub{registered: make(chan *websocket.Conn, 4), gone: make(chan *websocket.Conn, 4)}
}

func (h *mockHub) Register(conn *websocket.Conn) error {
	if h.registerErr != nil {
		_ = conn.Close()
		return h.registerErr
	}
	h.registered <- conn
	return nil
}

func (h *mockHub) Unregister(conn *websocket.Conn) {
	h.gone <- conn
}

// --- Test server builder ---

type testServerOption func(*Options)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *Options) { o.HealthChecks = checks }
}

func withRateLimit(perSecond float64, burst int) testServerOption {
	return func(o *Options) {
		o.RateLimit = perSecond
		o.RateBurst = burst
	}
}

func newTestServer(t *testing.T, kiosk kioskService, hub displayHub, opts ...testServerOption) *Server {
	t.Helper()
	o := Options{Addr: "127.0.0.1:0", RateLimit: 100, RateBurst: 100}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(o, kiosk, hub)
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
