package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/estatereach/pkg/ai"
	apierrors "github.com/jordanlanch/estatereach/pkg/api/errors"
)

// ChatbotHandler handles the lead qualification chat.
type ChatbotHandler struct {
	service *ai.Service
}

// NewChatbotHandler creates a new chatbot handler.
func NewChatbotHandler(service *ai.Service) *ChatbotHandler {
	return &ChatbotHandler{service: service}
}

// ChatMessageRequest is the POST /api/chatbot/message body.
type ChatMessageRequest struct {
	LeadID  uint   `json:"lead_id" validate:"required"`
	Message string `json:"message" validate:"required,max=4000"`
}

// Message handles POST /api/chatbot/message.
func (h *ChatbotHandler) Message(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.service.Message(ctx, req.LeadID, req.Message)
	switch {
	case errors.Is(err, ai.ErrLeadNotFound):
		return apierrors.NotFoundError(c, "Lead")
	case err != nil:
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// Transcript handles GET /api/chatbot/transcript/:id.
func (h *ChatbotHandler) Transcript(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := idParam(c)
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	messages, err := h.service.Transcript(ctx, id)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, messages)
}
