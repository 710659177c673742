package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/api/errors"
	"github.com/jordanlanch/leadflow/pkg/logger"
)

// StatsHandler serves the lead stats snapshot
type StatsHandler struct {
	stats  *analytics.Aggregator
	logger logger.Logger
}

// NewStatsHandler creates a stats handler
func NewStatsHandler(stats *analytics.Aggregator, log logger.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: log}
}

// Get returns the maintained counters
func (h *StatsHandler) Get(c echo.Context) error {
	snap, err := h.stats.Read(c.Request().Context())
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Rebuild recomputes the counters from the full lead set
func (h *StatsHandler) Rebuild(c echo.Context) error {
	snap, err := h.stats.Rebuild(c.Request().Context())
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, snap)
}
