package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/leadflow/pkg/api/errors"
	"github.com/jordanlanch/leadflow/pkg/campaign"
	"github.com/jordanlanch/leadflow/pkg/jobs"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/tracking"
)

// SendQueueRunner runs one dispatch batch
type SendQueueRunner interface {
	RunSendQueue(ctx context.Context, batchSize int) (*campaign.ProcessResult, error)
}

// CampaignHandler handles accounts, templates, campaigns and sends
type CampaignHandler struct {
	campaigns *campaign.Service
	tracking  *tracking.Service
	runner    SendQueueRunner
	validator *validator.Validate
	logger    logger.Logger
}

// NewCampaignHandler creates a campaign handler
func NewCampaignHandler(campaigns *campaign.Service, tracker *tracking.Service, runner SendQueueRunner, log logger.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		tracking:  tracker,
		runner:    runner,
		validator: validator.New(),
		logger:    log,
	}
}

// ListCampaigns returns campaigns newest first, optionally by status
func (h *CampaignHandler) ListCampaigns(c echo.Context) error {
	list, err := h.campaigns.ListCampaigns(c.Request().Context(), models.CampaignStatus(c.QueryParam("status")))
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CreateCampaign godoc
// @Summary Create a draft campaign
// @Description The filter is a JSON object with optional branche, plz, segment, status, scoreMin and scoreMax.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param body body models.CampaignRequest true "Campaign"
// @Success 201 {object} models.EmailCampaign
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse "Template or account not found"
// @Router /campaigns [post]
func (h *CampaignHandler) CreateCampaign(c echo.Context) error {
	var req models.CampaignRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	created, err := h.campaigns.CreateCampaign(c.Request().Context(), &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// GetCampaign returns a campaign with its counters and rates
func (h *CampaignHandler) GetCampaign(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	got, err := h.campaigns.GetCampaign(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, got)
}

// DeleteCampaign removes a campaign that is not running
func (h *CampaignHandler) DeleteCampaign(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	if err := h.campaigns.DeleteCampaign(c.Request().Context(), id); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateCampaign godoc
// @Summary Edit a draft campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path integer true "Campaign ID"
// @Param body body models.CampaignRequest true "Campaign"
// @Success 200 {object} models.EmailCampaign
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Campaign is not a draft"
// @Router /campaigns/{id} [put]
func (h *CampaignHandler) UpdateCampaign(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.CampaignRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	updated, err := h.campaigns.UpdateCampaign(c.Request().Context(), id, &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Preview counts the leads a start would select now and lists the first few
func (h *CampaignHandler) Preview(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	preview, err := h.campaigns.Preview(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, preview)
}

// Start godoc
// @Summary Start a draft campaign
// @Description Creates one queued send per matching lead with an email address.
// @Tags Campaigns
// @Produce json
// @Param id path integer true "Campaign ID"
// @Success 200 {object} campaign.StartResult
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse "Campaign is not a draft"
// @Router /campaigns/{id}/start [post]
func (h *CampaignHandler) Start(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	res, err := h.campaigns.StartCampaign(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Pause stops further dispatch of a campaign
func (h *CampaignHandler) Pause(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	paused, err := h.campaigns.Pause(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, paused)
}

// Resume continues a paused campaign
func (h *CampaignHandler) Resume(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	resumed, err := h.campaigns.Resume(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, resumed)
}

// ListSends returns the sends of a campaign
func (h *CampaignHandler) ListSends(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	sends, err := h.campaigns.ListSends(c.Request().Context(), id, models.SendStatus(c.QueryParam("status")), intParam(c, "limit", 0))
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, sends)
}

// ProcessQueue godoc
// @Summary Dispatch one batch of queued sends
// @Tags Campaigns
// @Produce json
// @Param batchSize query integer false "Maximum sends to dispatch"
// @Success 200 {object} campaign.ProcessResult
// @Failure 409 {object} models.ErrorResponse "A run is already in progress"
// @Router /campaigns/process-queue [post]
func (h *CampaignHandler) ProcessQueue(c echo.Context) error {
	res, err := h.runner.RunSendQueue(c.Request().Context(), intParam(c, "batchSize", 0))
	if stderrors.Is(err, jobs.ErrBusy) {
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "QUEUE_BUSY",
			Message: err.Error(),
		})
	}
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GetSend returns one send
func (h *CampaignHandler) GetSend(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	send, err := h.campaigns.GetSend(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, send)
}

// ListEvents returns the tracking events of a send
func (h *CampaignHandler) ListEvents(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	events, err := h.tracking.ListEvents(c.Request().Context(), id, intParam(c, "limit", 0))
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, events)
}

// UpdateSendStatus applies a provider status callback such as delivered
func (h *CampaignHandler) UpdateSendStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.SendStatusRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}

	send, applied, err := h.campaigns.UpdateSendStatus(c.Request().Context(), id, campaign.StatusUpdate{
		Status:            req.Status,
		At:                req.Timestamp,
		ProviderMessageID: req.ProviderMessageID,
		ErrorMessage:      req.ErrorMessage,
	})
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"applied": applied,
		"send":    send,
	})
}

// RecordEvent records a provider webhook event (bounce, complaint, ...)
func (h *CampaignHandler) RecordEvent(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.EventRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}

	event, err := h.tracking.RecordEvent(c.Request().Context(), tracking.Event{
		SendID:    id,
		Type:      req.Type,
		URL:       req.URL,
		UserAgent: c.Request().UserAgent(),
		IP:        c.RealIP(),
		Metadata:  req.Metadata,
	})
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, event)
}

// ListAccounts returns all sender accounts with secrets stripped
func (h *CampaignHandler) ListAccounts(c echo.Context) error {
	list, err := h.campaigns.ListAccounts(c.Request().Context())
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CreateAccount registers a sender account
func (h *CampaignHandler) CreateAccount(c echo.Context) error {
	var req models.AccountRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	acc, err := h.campaigns.CreateAccount(c.Request().Context(), &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, acc)
}

// GetAccount returns one sender account
func (h *CampaignHandler) GetAccount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	acc, err := h.campaigns.GetAccount(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, acc)
}

// UpdateAccount replaces an account. Empty secrets keep the stored ones.
func (h *CampaignHandler) UpdateAccount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.AccountRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	acc, err := h.campaigns.UpdateAccount(c.Request().Context(), id, &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, acc)
}

// VerifyAccount godoc
// @Summary Test an account's provider connection
// @Description Checks credentials without sending mail and stores the result in verified. A failed check is reported with success=false.
// @Tags Accounts
// @Produce json
// @Param id path integer true "Account ID"
// @Success 200 {object} campaign.AccountCheck
// @Failure 404 {object} models.ErrorResponse
// @Router /accounts/{id}/test [post]
func (h *CampaignHandler) VerifyAccount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	check, err := h.campaigns.VerifyAccount(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, check)
}

// DeleteAccount removes an account no campaign references
func (h *CampaignHandler) DeleteAccount(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	if err := h.campaigns.DeleteAccount(c.Request().Context(), id); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListTemplates returns all templates
func (h *CampaignHandler) ListTemplates(c echo.Context) error {
	list, err := h.campaigns.ListTemplates(c.Request().Context())
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CreateTemplate stores a template and derives its variable list
func (h *CampaignHandler) CreateTemplate(c echo.Context) error {
	var req models.TemplateRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	tmpl, err := h.campaigns.CreateTemplate(c.Request().Context(), &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, tmpl)
}

// GetTemplate returns one template
func (h *CampaignHandler) GetTemplate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	tmpl, err := h.campaigns.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

// UpdateTemplate replaces a template
func (h *CampaignHandler) UpdateTemplate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.TemplateRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	tmpl, err := h.campaigns.UpdateTemplate(c.Request().Context(), id, &req)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

// PreviewEmail renders a template for one lead without tracking
func (h *CampaignHandler) PreviewEmail(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	var req models.EmailPreviewRequest
	if err := bindJSON(c, h.validator, &req); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	rendered, err := h.campaigns.PreviewEmail(c.Request().Context(), id, req.LeadID, req.AccountID)
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, rendered)
}

// DeleteTemplate removes a template no campaign references
func (h *CampaignHandler) DeleteTemplate(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return errors.Respond(c, h.logger, err)
	}
	if err := h.campaigns.DeleteTemplate(c.Request().Context(), id); err != nil {
		return errors.Respond(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
