package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/templates"
)

// TemplateHandler handles email template CRUD and previews.
type TemplateHandler struct {
	service *templates.Service
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(service *templates.Service) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// CreateTemplateRequest is the POST /api/templates body.
type CreateTemplateRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Subject   string `json:"subject" validate:"required,max=255"`
	Body      string `json:"body" validate:"required"`
	IsDefault bool   `json:"is_default"`
}

// UpdateTemplateRequest is the PUT /api/templates/:id body.
type UpdateTemplateRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	Subject   *string `json:"subject" validate:"omitempty,max=255"`
	Body      *string `json:"body"`
	IsDefault *bool   `json:"is_default"`
}

// PreviewTextRequest is the POST /api/templates/preview body.
type PreviewTextRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body" validate:"required"`
}

// Create handles POST /api/templates.
func (h *TemplateHandler) Create(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	tpl := &models.EmailTemplate{
		Name:      req.Name,
		Subject:   req.Subject,
		Body:      req.Body,
		IsDefault: req.IsDefault,
	}

	err := h.service.Create(ctx, tpl)
	switch {
	case errors.Is(err, templates.ErrDuplicateName):
		return apierrors.ConflictError(c, "A template with this name already exists.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusCreated, tpl)
}

// List handles GET /api/templates.
func (h *TemplateHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.service.List(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get handles GET /api/templates/:id.
func (h *TemplateHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	tpl, err := h.service.Get(ctx, id)
	switch {
	case errors.Is(err, templates.ErrNotFound):
		return apierrors.NotFoundError(c, "Template")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, tpl)
}

// Default handles GET /api/templates/default/active.
func (h *TemplateHandler) Default(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	tpl, err := h.service.Default(ctx)
	switch {
	case errors.Is(err, templates.ErrNoDefault):
		return apierrors.NotFoundError(c, "Default template")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, tpl)
}

// Update handles PUT /api/templates/:id.
func (h *TemplateHandler) Update(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	var req UpdateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	tpl, err := h.service.Update(ctx, id, templates.UpdateParams{
		Name:      req.Name,
		Subject:   req.Subject,
		Body:      req.Body,
		IsDefault: req.IsDefault,
	})
	switch {
	case errors.Is(err, templates.ErrNotFound):
		return apierrors.NotFoundError(c, "Template")
	case errors.Is(err, templates.ErrDuplicateName):
		return apierrors.ConflictError(c, "A template with this name already exists.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, tpl)
}

// Delete handles DELETE /api/templates/:id.
func (h *TemplateHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	err = h.service.Delete(ctx, id)
	switch {
	case errors.Is(err, templates.ErrNotFound):
		return apierrors.NotFoundError(c, "Template")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Template deleted."})
}

// Preview handles POST /api/templates/:id/preview.
func (h *TemplateHandler) Preview(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	preview, err := h.service.Preview(ctx, id)
	switch {
	case errors.Is(err, templates.ErrNotFound):
		return apierrors.NotFoundError(c, "Template")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, preview)
}

// PreviewText handles POST /api/templates/preview (ad-hoc subject/body).
func (h *TemplateHandler) PreviewText(c echo.Context) error {
	var req PreviewTextRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	return c.JSON(http.StatusOK, h.service.PreviewText(req.Subject, req.Body))
}

// SeedDefaults handles POST /api/templates/seed/defaults.
func (h *TemplateHandler) SeedDefaults(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	created, err := h.service.SeedDefaults(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]int{"created": created})
}
