package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jordanlanch/estatereach/pkg/logger"
)

// Delivery modes reported in SendResult.Mode.
const (
	ModeMock     = "mock"
	ModeSendGrid = "sendgrid"
)

// SendResult is the normalized outcome of one provider call. Success and
// Error never disagree: a failed call carries a non-empty Error and no
// MessageID.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Mode      string `json:"mode"`
	Error     string `json:"error,omitempty"`
}

// Provider delivers a single email. Implementations never retry and never
// consult send limits; both concerns belong to callers.
type Provider interface {
	Send(ctx context.Context, to, subject, body string) *SendResult
	Mode() string
}

// MockProvider logs the rendered message and fabricates a message id. It
// is the fallback when no SendGrid credentials are configured, so local
// development exercises the full dispatch path without network calls.
type MockProvider struct {
	log logger.Logger
}

// NewMockProvider creates the logging mock backend.
func NewMockProvider(log logger.Logger) *MockProvider {
	return &MockProvider{log: log}
}

func (p *MockProvider) Mode() string { return ModeMock }

func (p *MockProvider) Send(_ context.Context, to, subject, body string) *SendResult {
	id := "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	preview := body
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	p.log.Info("mock email send",
		"to", to,
		"subject", subject,
		"body_preview", preview,
		"message_id", id,
	)

	return &SendResult{Success: true, MessageID: id, Mode: ModeMock}
}

// SendGridProvider delivers through the SendGrid v3 API.
type SendGridProvider struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	log       logger.Logger
}

// NewSendGridProvider creates the real backend.
func NewSendGridProvider(apiKey, fromEmail, fromName string, log logger.Logger) *SendGridProvider {
	return &SendGridProvider{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		log:       log,
	}
}

func (p *SendGridProvider) Mode() string { return ModeSendGrid }

func (p *SendGridProvider) Send(ctx context.Context, to, subject, body string) *SendResult {
	from := mail.NewEmail(p.fromName, p.fromEmail)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, body, body)

	resp, err := p.client.SendWithContext(ctx, message)
	if err != nil {
		return &SendResult{Mode: ModeSendGrid, Error: err.Error()}
	}
	if resp.StatusCode >= 300 {
		return &SendResult{
			Mode:  ModeSendGrid,
			Error: fmt.Sprintf("sendgrid returned %d: %s", resp.StatusCode, resp.Body),
		}
	}

	// SendGrid reports the id assigned to the message in a response
	// header; webhooks reference this id later.
	var messageID string
	if ids, ok := resp.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}

	return &SendResult{Success: true, MessageID: messageID, Mode: ModeSendGrid}
}
