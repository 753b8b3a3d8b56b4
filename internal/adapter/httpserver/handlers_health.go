package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const readinessProbeTimeout = 2 * time.Second

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := time.Since(s.startTime).Seconds()

	response := map[string]any{
		"status": "ok",
		"uptime": uptime,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}

	return nil
}

// handleReadiness reports ready while the event loop answers and no channel has
// exhausted its retries. Channels that are still connecting do not fail the probe.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	for _, hc := range s.opts.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			return s.unhealthy(c, hc.Name, err, nil)
		}
	}

	status, err := s.kiosk.Status(ctx)
	if err != nil {
		return s.unhealthy(c, "event_loop", err, nil)
	}

	var failed []string
	for stream, state := range status.Channels {
		if state == domain.ChannelFailed.String() {
			failed = append(failed, string(stream))
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return s.unhealthy(c, "channels", fmt.Errorf("failed channels: %s", strings.Join(failed, ", ")), status.Channels)
	}

	response := map[string]any{
		"status":   "ready",
		"channels": status.Channels,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) unhealthy(c echo.Context, check string, cause error, channels map[domain.StreamID]string) error {
	response := map[string]any{
		"status":       "unhealthy",
		"failed_check": check,
		"error":        cause.Error(),
	}
	if channels != nil {
		response["channels"] = channels
	}
	if err := c.JSON(http.StatusServiceUnavailable, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
