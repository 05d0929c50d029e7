package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/demo"
	"github.com/jordanlanch/estatereach/pkg/models"
)

// DemoHandler handles demo data seeding and teardown.
type DemoHandler struct {
	service *demo.Service
}

// NewDemoHandler creates a new demo handler.
func NewDemoHandler(service *demo.Service) *DemoHandler {
	return &DemoHandler{service: service}
}

// SeedRequest is the POST /api/demo/seed body.
type SeedRequest struct {
	Count int `json:"count" validate:"omitempty,min=1,max=500"`
}

// SimulateRepliesRequest is the POST /api/demo/simulate-replies body.
type SimulateRepliesRequest struct {
	Count int `json:"count" validate:"omitempty,min=1,max=100"`
}

// Seed handles POST /api/demo/seed.
func (h *DemoHandler) Seed(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var req SeedRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	summary, err := h.service.Seed(ctx, req.Count)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// Reset handles POST /api/demo/reset. Wipes every table.
func (h *DemoHandler) Reset(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.service.Reset(ctx); err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "All data removed."})
}

// SimulateReplies handles POST /api/demo/simulate-replies.
func (h *DemoHandler) SimulateReplies(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var req SimulateRepliesRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	created, err := h.service.SimulateReplies(ctx, req.Count)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"replies_created": created})
}
