package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/app"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type kioskService interface {
	SetLiveFeed(ctx context.Context, on bool) error
	ReportIssue(ctx context.Context) error
	AcknowledgeNotification(ctx context.Context, id uuid.UUID) error
	ResetChannel(ctx context.Context, stream domain.StreamID) error
	Status(ctx context.Context) (app.Status, error)
}

type displayHub interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
}

// Options configure the operator API.
type Options struct {
	Addr          string
	RateLimit     float64
	RateBurst     int
	HealthChecks  []HealthCheck
	AllowedOrigin func(r *http.Request) bool
}

type Server struct {
	echo     *echo.Echo
	opts     Options
	kiosk    kioskService
	hub      displayHub
	upgrader websocket.Upgrader

	startTime time.Time
}

func NewServer(opts Options, kiosk kioskService, hub displayHub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	checkOrigin := opts.AllowedOrigin
	if checkOrigin == nil {
		checkOrigin = NewCheckOrigin(false)
	}

	srv := &Server{
		echo:      e,
		opts:      opts,
		kiosk:     kiosk,
		hub:       hub,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting operator API", "addr", s.opts.Addr)
	if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
