package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerDisplayRoutes() {
	s.echo.GET("/ws/view", s.handleDisplaySocket)
}

// handleDisplaySocket upgrades a local display client and hands it to the hub. The
// read loop only exists to notice the client going away.
func (s *Server) handleDisplaySocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		slog.WarnContext(c.Request().Context(), "Display socket upgrade failed", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.WarnContext(c.Request().Context(), "Display client rejected", "error", err)
		return nil
	}

	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
