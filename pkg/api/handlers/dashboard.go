package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
	"github.com/jordanlanch/estatereach/pkg/dashboard"
	"github.com/jordanlanch/estatereach/pkg/email"
)

// DashboardHandler serves aggregate read models.
type DashboardHandler struct {
	service  *dashboard.Service
	emailSvc *email.Service
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(service *dashboard.Service, emailSvc *email.Service) *DashboardHandler {
	return &DashboardHandler{service: service, emailSvc: emailSvc}
}

// Overview handles GET /api/dashboard.
func (h *DashboardHandler) Overview(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	overview, err := h.service.Overview(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}

// Stats handles GET /api/dashboard/stats.
func (h *DashboardHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Funnel handles GET /api/dashboard/funnel.
func (h *DashboardHandler) Funnel(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	funnel, err := h.service.Funnel(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, funnel)
}

// Activity handles GET /api/dashboard/activity.
func (h *DashboardHandler) Activity(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.service.Activity(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Campaigns handles GET /api/dashboard/campaigns.
func (h *DashboardHandler) Campaigns(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	overviews, err := h.service.Campaigns(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, overviews)
}

// Quick handles GET /api/dashboard/quick.
func (h *DashboardHandler) Quick(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	quick, err := h.service.Quick(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, quick)
}

// SendStatus handles GET /api/dashboard/send-status: the email provider
// mode, daily cap, and how much of it is left.
func (h *DashboardHandler) SendStatus(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	status, err := h.emailSvc.Status(ctx)
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
