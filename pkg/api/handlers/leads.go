package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/export"
	"github.com/jordanlanch/estatereach/pkg/importer"
	"github.com/jordanlanch/estatereach/pkg/leads"
	"github.com/jordanlanch/estatereach/pkg/models"
)

// LeadHandler handles lead CRUD, CSV import and export.
type LeadHandler struct {
	service *leads.Service
	export  *export.Service
}

// NewLeadHandler creates a new lead handler.
func NewLeadHandler(service *leads.Service, exportSvc *export.Service) *LeadHandler {
	return &LeadHandler{service: service, export: exportSvc}
}

// CreateLeadRequest is the POST /api/leads body.
type CreateLeadRequest struct {
	Email          string `json:"email" validate:"required,email"`
	FirstName      string `json:"first_name" validate:"required,max=100"`
	LastName       string `json:"last_name" validate:"max=100"`
	Company        string `json:"company" validate:"max=100"`
	Phone          string `json:"phone" validate:"max=20"`
	Address        string `json:"address" validate:"max=255"`
	PropertyType   string `json:"property_type" validate:"max=100"`
	EstimatedValue string `json:"estimated_value" validate:"max=50"`
	Notes          string `json:"notes"`
}

// UpdateLeadRequest is the PUT /api/leads/:id body; absent fields stay.
type UpdateLeadRequest struct {
	FirstName      *string `json:"first_name" validate:"omitempty,max=100"`
	LastName       *string `json:"last_name" validate:"omitempty,max=100"`
	Company        *string `json:"company" validate:"omitempty,max=100"`
	Phone          *string `json:"phone" validate:"omitempty,max=20"`
	Address        *string `json:"address" validate:"omitempty,max=255"`
	PropertyType   *string `json:"property_type" validate:"omitempty,max=100"`
	EstimatedValue *string `json:"estimated_value" validate:"omitempty,max=50"`
	Status         *string `json:"status"`
	Notes          *string `json:"notes"`
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 10*time.Second)
}

func idParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// Create handles POST /api/leads.
func (h *LeadHandler) Create(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var req CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead := &models.Lead{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Company:        req.Company,
		Phone:          req.Phone,
		Address:        req.Address,
		PropertyType:   req.PropertyType,
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
	}

	err := h.service.Create(ctx, lead)
	switch {
	case errors.Is(err, leads.ErrDuplicateEmail):
		return apierrors.ConflictError(c, "A lead with this email already exists.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusCreated, lead)
}

// List handles GET /api/leads.
func (h *LeadHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	items, pagination, err := h.service.List(ctx, leads.ListParams{
		Page:    page,
		PerPage: perPage,
		Status:  c.QueryParam("status"),
		Search:  c.QueryParam("search"),
	})
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.LeadListResponse{
		Leads:      items,
		Pagination: *pagination,
	})
}

// Get handles GET /api/leads/:id.
func (h *LeadHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	detail, err := h.service.Get(ctx, id)
	switch {
	case errors.Is(err, leads.ErrNotFound):
		return apierrors.NotFoundError(c, "Lead")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, detail)
}

// Update handles PUT /api/leads/:id.
func (h *LeadHandler) Update(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	var req UpdateLeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead, err := h.service.Update(ctx, id, leads.UpdateParams{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Company:        req.Company,
		Phone:          req.Phone,
		Address:        req.Address,
		PropertyType:   req.PropertyType,
		EstimatedValue: req.EstimatedValue,
		Status:         req.Status,
		Notes:          req.Notes,
	})
	switch {
	case errors.Is(err, leads.ErrNotFound):
		return apierrors.NotFoundError(c, "Lead")
	case errors.Is(err, leads.ErrInvalidStatus):
		return apierrors.BadRequestError(c, "Unknown lead status.")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, lead)
}

// Delete handles DELETE /api/leads/:id.
func (h *LeadHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	err = h.service.Delete(ctx, id)
	switch {
	case errors.Is(err, leads.ErrNotFound):
		return apierrors.NotFoundError(c, "Lead")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Lead deleted."})
}

// Upload handles POST /api/leads/upload (multipart CSV).
func (h *LeadHandler) Upload(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	file, err := c.FormFile("file")
	if err != nil {
		return apierrors.BadRequestError(c, "Attach a CSV file in the 'file' field.")
	}

	src, err := file.Open()
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	defer src.Close()

	summary, err := h.service.Import(ctx, src)
	switch {
	case errors.Is(err, importer.ErrNoHeader), errors.Is(err, importer.ErrMissingColumns):
		return apierrors.BadRequestError(c, err.Error())
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}

// SampleCSV handles GET /api/leads/template/csv.
func (h *LeadHandler) SampleCSV(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="leads_template.csv"`)
	return c.Blob(http.StatusOK, "text/csv", []byte(importer.SampleCSV()))
}

// Export handles GET /api/leads/export (XLSX download).
func (h *LeadHandler) Export(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	data, err := h.export.Leads(ctx, c.QueryParam("status"))
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename()+`"`)
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
