package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	"github.com/jordanlanch/leadflow/pkg/enrichment"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/phone"
)

// LeadHandler handles lead endpoints
type LeadHandler struct {
	leads     *leads.Service
	enrich    *enrichment.Service
	phones    *phone.Normalizer
	validator *validator.Validate
	logger    logger.Logger
}

// NewLeadHandler creates a lead handler. enrich may be nil when no OpenAI
// key is configured.
func NewLeadHandler(leadStore *leads.Service, enrich *enrichment.Service, phones *phone.Normalizer, log logger.Logger) *LeadHandler {
	return &LeadHandler{
		leads:     leadStore,
		enrich:    enrich,
		phones:    phones,
		validator: validator.New(),
		logger:    log,
	}
}

// List godoc
// @Summary List leads
// @Description Filter by segment, branche, status, plz prefix, score range and free text; sorted and paginated.
// @Tags Leads
// @Produce json
// @Param segment query string false "HOT, WARM, COLD or DISQUALIFIED"
// @Param branche query string false "Industry"
// @Param plz query string false "Postal code prefix"
// @Param q query string false "Search in firma, ort and email"
// @Param sort query string false "Sort field" default(score)
// @Param order query string false "asc or desc" default(desc)
// @Success 200 {object} leads.Page
// @Router /leads [get]
func (h *LeadHandler) List(c echo.Context) error {
	req := models.LeadListRequest{
		Segment:    c.QueryParam("segment"),
		Industry:   c.QueryParam("branche"),
		Status:     c.QueryParam("status"),
		PostalCode: c.QueryParam("plz"),
		Search:     c.QueryParam("q"),
		SortBy:     c.QueryParam("sort"),
		Order:      c.QueryParam("order"),
		Page:       intParam(c, "page", 1),
		Limit:      intParam(c, "limit", leads.DefaultPageSize),
	}
	var err error
	if req.ScoreMin, err = optionalInt(c, "scoreMin"); err != nil {
		return errors.ValidationError(c, err.Error())
	}
	if req.ScoreMax, err = optionalInt(c, "scoreMax"); err != nil {
		return errors.ValidationError(c, err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, validationMessage(err))
	}

	page, err := h.leads.List(c.Request().Context(), leads.FromRequest(req))
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get returns one lead
func (h *LeadHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	lead, err := h.leads.Get(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// Create godoc
// @Summary Create a lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param lead body models.LeadRequest true "Lead"
// @Success 201 {object} models.Lead
// @Failure 400 {object} models.ErrorResponse
// @Router /leads [post]
func (h *LeadHandler) Create(c echo.Context) error {
	var req models.LeadRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	req.Phone = h.phones.Normalize(req.Phone)

	lead, err := h.leads.Create(c.Request().Context(), &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, lead)
}

// BulkCreate godoc
// @Summary Import leads
// @Description Records matching an existing lead or an earlier record of the batch by (firma, plz), website or email are skipped.
// @Tags Leads
// @Accept json
// @Produce json
// @Param body body models.BulkLeadRequest true "Leads"
// @Success 200 {object} models.BulkLeadResponse
// @Router /leads/bulk [post]
func (h *LeadHandler) BulkCreate(c echo.Context) error {
	var req models.BulkLeadRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	for i := range req.Leads {
		req.Leads[i].Phone = h.phones.Normalize(req.Leads[i].Phone)
	}

	res, err := h.leads.BulkCreate(c.Request().Context(), req.Leads)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update replaces every editable field of a lead
func (h *LeadHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.LeadRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	req.Phone = h.phones.Normalize(req.Phone)

	lead, err := h.leads.Update(c.Request().Context(), id, &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// Patch changes the supplied allow-listed fields
func (h *LeadHandler) Patch(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var patch models.LeadPatch
	if err := bindJSON(c, h.validator, &patch); err != nil {
		return errors.Respond(c, h.logger, err)
	}

	lead, err := h.leads.Patch(c.Request().Context(), id, patch)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// AddHistory appends a manual history entry
func (h *LeadHandler) AddHistory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.HistoryRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}

	lead, err := h.leads.AddHistory(c.Request().Context(), id, req.Action, req.Details)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// Delete removes a lead
func (h *LeadHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	if err := h.leads.Remove(c.Request().Context(), id); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Purge deletes every lead. The caller must pass confirm=true.
func (h *LeadHandler) Purge(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return errors.ValidationError(c, "purging all leads requires confirm=true")
	}
	n, err := h.leads.Purge(c.Request().Context())
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	h.logger.Warn("all leads purged", "deleted", n)
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

// Enrich runs the AI analysis for one lead
func (h *LeadHandler) Enrich(c echo.Context) error {
	if h.enrich == nil {
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "ENRICHMENT_DISABLED",
			Message: "AI enrichment is not configured",
		})
	}
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}

	lead, err := h.enrich.EnrichLead(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// ValidatePhone reports how a phone number parses in the default region
func (h *LeadHandler) ValidatePhone(c echo.Context) error {
	res, err := h.phones.Parse(c.QueryParam("number"))
	if err != nil {
		return errors.ValidationError(c, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
