package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/tracking"
)

// TrackingHandler serves the public open pixel and click redirect.
// Recording is best effort: failures are logged and the recipient still
// gets the image or the redirect.
type TrackingHandler struct {
	tracking *tracking.Service
	logger   logger.Logger
}

// NewTrackingHandler creates a tracking handler
func NewTrackingHandler(tracker *tracking.Service, log logger.Logger) *TrackingHandler {
	return &TrackingHandler{tracking: tracker, logger: log}
}

// Open records an open and returns a transparent GIF
func (h *TrackingHandler) Open(c echo.Context) error {
	if id, ok := h.sendID(c); ok {
		if err := h.tracking.RecordOpen(c.Request().Context(), id, c.Request().UserAgent(), c.RealIP()); err != nil {
			h.logger.Warn("failed to record open", "send_id", id, "error", err)
		}
	}

	c.Response().Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Response().Header().Set("Pragma", "no-cache")
	c.Response().Header().Set("Expires", "0")
	return c.Blob(http.StatusOK, "image/gif", tracking.Pixel)
}

// Click records a click and redirects to the target URL
func (h *TrackingHandler) Click(c echo.Context) error {
	target := c.QueryParam("url")
	if id, ok := h.sendID(c); ok {
		if err := h.tracking.RecordClick(c.Request().Context(), id, target, c.Request().UserAgent(), c.RealIP()); err != nil {
			h.logger.Warn("failed to record click", "send_id", id, "error", err)
		}
	}
	return c.Redirect(http.StatusFound, tracking.SafeRedirect(target))
}

func (h *TrackingHandler) sendID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("sendId"), 10, 64)
	if err != nil || id == 0 {
		h.logger.Debug("tracking hit with invalid send id", "send_id", c.Param("sendId"))
		return 0, false
	}
	return uint(id), true
}
