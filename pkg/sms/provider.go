package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jordanlanch/estatereach/pkg/logger"
)

// Delivery modes reported in SendResult.Mode.
const (
	ModeMock   = "mock"
	ModeTwilio = "twilio"
)

// SendResult is the normalized outcome of one provider call.
type SendResult struct {
	Success bool   `json:"success"`
	SID     string `json:"sid,omitempty"`
	Mode    string `json:"mode"`
	Error   string `json:"error,omitempty"`
}

// Provider delivers a single SMS. No retry, no limiting; both belong to
// callers.
type Provider interface {
	Send(ctx context.Context, to, body string) *SendResult
	Mode() string
}

// MockProvider logs the message and fabricates a SID, used when Twilio
// credentials are absent.
type MockProvider struct {
	log logger.Logger
}

// NewMockProvider creates the logging mock backend.
func NewMockProvider(log logger.Logger) *MockProvider {
	return &MockProvider{log: log}
}

func (p *MockProvider) Mode() string { return ModeMock }

func (p *MockProvider) Send(_ context.Context, to, body string) *SendResult {
	sid := "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	p.log.Info("mock sms send", "to", to, "body", body, "sid", sid)

	return &SendResult{Success: true, SID: sid, Mode: ModeMock}
}

// TwilioProvider delivers through the Twilio Messages REST API.
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
	baseURL    string
	log        logger.Logger
}

// NewTwilioProvider creates the real backend.
func NewTwilioProvider(accountSID, authToken, fromNumber string, log logger.Logger) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.twilio.com",
		log:        log,
	}
}

func (p *TwilioProvider) Mode() string { return ModeTwilio }

// twilioResponse is the subset of the Messages API response we read.
type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"` // error description on failure
	Code    int    `json:"code"`
}

func (p *TwilioProvider) Send(ctx context.Context, to, body string) *SendResult {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &SendResult{Mode: ModeTwilio, Error: err.Error()}
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &SendResult{Mode: ModeTwilio, Error: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &SendResult{Mode: ModeTwilio, Error: err.Error()}
	}

	var tr twilioResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return &SendResult{Mode: ModeTwilio, Error: fmt.Sprintf("twilio returned %d: unparseable body", resp.StatusCode)}
	}

	if resp.StatusCode >= 300 {
		msg := tr.Message
		if msg == "" {
			msg = string(data)
		}
		return &SendResult{Mode: ModeTwilio, Error: fmt.Sprintf("twilio returned %d: %s", resp.StatusCode, msg)}
	}

	return &SendResult{Success: true, SID: tr.SID, Mode: ModeTwilio}
}
