package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	apperrors "github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/errors"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const apiTimeout = 5 * time.Second

type liveFeedRequest struct {
	On *bool `json:"on"`
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", newCommandLimiter(s.opts.RateLimit, s.opts.RateBurst))
	api.GET("/state", s.handleState)
	api.POST("/live-feed", s.handleLiveFeed)
	api.POST("/feedback", s.handleFeedback)
	api.POST("/notifications/:id/ack", s.handleAcknowledge)
	api.POST("/channels/:stream/reset", s.handleResetChannel)
}

func (s *Server) handleState(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), apiTimeout)
	defer cancel()

	status, err := s.kiosk.Status(ctx)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, status); err != nil {
		return fmt.Errorf("failed to write state response: %w", err)
	}
	return nil
}

func (s *Server) handleLiveFeed(c echo.Context) error {
	var req liveFeedRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.On == nil {
		return apperrors.ValidationError("field 'on' is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), apiTimeout)
	defer cancel()

	if err := s.kiosk.SetLiveFeed(ctx, *req.On); err != nil {
		return err
	}

	if err := c.JSON(http.StatusAccepted, map[string]any{"status": "pending", "on": *req.On}); err != nil {
		return fmt.Errorf("failed to write live feed response: %w", err)
	}
	return nil
}

func (s *Server) handleFeedback(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), apiTimeout)
	defer cancel()

	if err := s.kiosk.ReportIssue(ctx); err != nil {
		return err
	}

	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "sent"}); err != nil {
		return fmt.Errorf("failed to write feedback response: %w", err)
	}
	return nil
}

func (s *Server) handleAcknowledge(c echo.Context) error {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return apperrors.ValidationError("invalid notification id").WithField("id", idStr)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), apiTimeout)
	defer cancel()

	if err := s.kiosk.AcknowledgeNotification(ctx, id); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "acknowledged"}); err != nil {
		return fmt.Errorf("failed to write acknowledge response: %w", err)
	}
	return nil
}

func (s *Server) handleResetChannel(c echo.Context) error {
	name := c.Param("stream")
	stream, err := domain.ParseStreamID(name)
	if err != nil {
		return apperrors.ValidationError("unknown stream").WithField("stream", name)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), apiTimeout)
	defer cancel()

	if err := s.kiosk.ResetChannel(ctx, stream); err != nil {
		return err
	}

	if err := c.JSON(http.StatusAccepted, map[string]string{"status": "connecting", "stream": string(stream)}); err != nil {
		return fmt.Errorf("failed to write reset response: %w", err)
	}
	return nil
}
