// Package httpserver exposes the operational endpoints for a running
// interview session: health, status, metrics, and the job catalog.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chadiek/interview-call/internal/jobs"
	"github.com/chadiek/interview-call/internal/media"
	"github.com/chadiek/interview-call/internal/session"
)

// StatusSource provides the session view rendered by /status.
type StatusSource interface {
	Status() session.Snapshot
	Transcript() []session.Turn
}

// OfferHandler answers WebRTC offers from the capture page.
type OfferHandler interface {
	HandleOffer(ctx context.Context, offer media.SessionDescription) (media.SessionDescription, error)
}

// New creates a configured Echo server instance.
func New(status StatusSource, catalog *jobs.Catalog, rtc OfferHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, status.Status())
	})

	e.GET("/transcript", func(c echo.Context) error {
		return c.JSON(http.StatusOK, status.Transcript())
	})

	e.GET("/jobs", func(c echo.Context) error {
		if catalog == nil {
			return c.JSON(http.StatusOK, []jobs.Job{})
		}
		return c.JSON(http.StatusOK, catalog.All())
	})

	e.POST("/call", func(c echo.Context) error {
		if rtc == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "media capture not configured"})
		}
		var offer media.SessionDescription
		if err := c.Bind(&offer); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid offer"})
		}
		answer, err := rtc.HandleOffer(c.Request().Context(), offer)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, answer)
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
