package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/campaigns"
	"github.com/jordanlanch/estatereach/pkg/models"
)

// CampaignHandler handles campaign CRUD and lifecycle actions.
type CampaignHandler struct {
	service *campaigns.Service
}

// NewCampaignHandler creates a new campaign handler.
func NewCampaignHandler(service *campaigns.Service) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// CreateCampaignRequest is the POST /api/campaigns body.
type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// UpdateCampaignRequest is the PUT /api/campaigns/:id body.
type UpdateCampaignRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// StartCampaignRequest is the POST /api/campaigns/:id/start body. Either
// template_id or an inline subject+body selects the content; both absent
// falls back to the default template.
type StartCampaignRequest struct {
	TemplateID *uint  `json:"template_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	LeadIDs    []uint `json:"lead_ids"`
}

// QuickStartRequest is the POST /api/campaigns/quick-start body.
type QuickStartRequest struct {
	Name       string `json:"name" validate:"max=100"`
	TemplateID *uint  `json:"template_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	LeadIDs    []uint `json:"lead_ids"`
}

// Create handles POST /api/campaigns.
func (h *CampaignHandler) Create(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	campaign := &models.Campaign{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.service.Create(ctx, campaign); err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusCreated, campaign)
}

// List handles GET /api/campaigns.
func (h *CampaignHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.service.List(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get handles GET /api/campaigns/:id.
func (h *CampaignHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	detail, err := h.service.Get(ctx, id)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return apierrors.NotFoundError(c, "Campaign")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, detail)
}

// Update handles PUT /api/campaigns/:id.
func (h *CampaignHandler) Update(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	var req UpdateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	campaign, err := h.service.Update(ctx, id, campaigns.UpdateParams{
		Name:        req.Name,
		Description: req.Description,
	})
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return apierrors.NotFoundError(c, "Campaign")
	case errors.Is(err, campaigns.ErrActive):
		return apierrors.ConflictError(c, "Active campaigns cannot be edited.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, campaign)
}

// Delete handles DELETE /api/campaigns/:id.
func (h *CampaignHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	err = h.service.Delete(ctx, id)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return apierrors.NotFoundError(c, "Campaign")
	case errors.Is(err, campaigns.ErrActive):
		return apierrors.ConflictError(c, "Active campaigns cannot be deleted.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Campaign deleted."})
}

// Start handles POST /api/campaigns/:id/start. The dispatch loop runs
// synchronously; the response is the full run summary.
func (h *CampaignHandler) Start(c echo.Context) error {
	// No per-request timeout: a run iterates many leads with retry sleeps.
	ctx := c.Request().Context()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	var req StartCampaignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	summary, err := h.service.Start(ctx, id, campaigns.StartOptions{
		TemplateID: req.TemplateID,
		Subject:    req.Subject,
		Body:       req.Body,
		LeadIDs:    req.LeadIDs,
	})
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return apierrors.NotFoundError(c, "Campaign")
	case errors.Is(err, campaigns.ErrInvalidTransition):
		return apierrors.ConflictError(c, "Campaign cannot be started from its current status.")
	case errors.Is(err, campaigns.ErrNoTemplate):
		return apierrors.BadRequestError(c, "No template selected and no default template exists.")
	case errors.Is(err, campaigns.ErrNoLeads):
		return apierrors.BadRequestError(c, "No leads available to contact.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}

// Pause handles POST /api/campaigns/:id/pause.
func (h *CampaignHandler) Pause(c echo.Context) error {
	return h.lifecycle(c, h.service.Pause, "Campaign paused.")
}

// Resume handles POST /api/campaigns/:id/resume.
func (h *CampaignHandler) Resume(c echo.Context) error {
	return h.lifecycle(c, h.service.Resume, "Campaign resumed.")
}

// Complete handles POST /api/campaigns/:id/complete.
func (h *CampaignHandler) Complete(c echo.Context) error {
	return h.lifecycle(c, h.service.Complete, "Campaign completed.")
}

func (h *CampaignHandler) lifecycle(c echo.Context, fn func(ctx context.Context, id uint) error, msg string) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	err = fn(ctx, id)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return apierrors.NotFoundError(c, "Campaign")
	case errors.Is(err, campaigns.ErrInvalidTransition):
		return apierrors.ConflictError(c, "Campaign cannot change to that status from its current one.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: msg})
}

// QuickStart handles POST /api/campaigns/quick-start: create and run in one
// call.
func (h *CampaignHandler) QuickStart(c echo.Context) error {
	ctx := c.Request().Context()

	var req QuickStartRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	summary, err := h.service.QuickStart(ctx, req.Name, campaigns.StartOptions{
		TemplateID: req.TemplateID,
		Subject:    req.Subject,
		Body:       req.Body,
		LeadIDs:    req.LeadIDs,
	})
	switch {
	case errors.Is(err, campaigns.ErrNoTemplate):
		return apierrors.BadRequestError(c, "No template selected and no default template exists.")
	case errors.Is(err, campaigns.ErrNoLeads):
		return apierrors.BadRequestError(c, "No leads available to contact.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}

// Emails handles GET /api/campaigns/:id/emails.
func (h *CampaignHandler) Emails(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	emails, err := h.service.Emails(ctx, id)
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		return apierrors.NotFoundError(c, "Campaign")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, emails)
}
