package httpserver

import (
	"strconv"
	"strings"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/correlation"
	"github.com/labstack/echo/v4"
)

const headerRequestID = "X-Request-ID"

// requestIDMiddleware tags the request context with an ID, taken from the
// X-Request-ID header when the caller sent one, and echoes it back.
func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(headerRequestID)
		if id == "" || len(id) > 64 {
			id = correlation.NewRequestID()
		}
		ctx := correlation.WithRequestID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(headerRequestID, id)
		return next(c)
	}
}

// apiMetricsMiddleware records latency per route template. Probes, scrapes and the
// long-lived display socket are not measured.
func apiMetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Path()
		if route == "/metrics" || route == "/ws/view" || strings.HasPrefix(route, "/health/") {
			return next(c)
		}

		metrics.APIRequestsInFlight.Inc()
		defer metrics.APIRequestsInFlight.Dec()

		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil && !c.Response().Committed {
			// The error middleware below this one already wrote the response for
			// runtime errors; only echo errors still bubble up uncommitted.
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		metrics.APIRequestDuration.
			WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
