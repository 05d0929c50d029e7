// Package ai powers the lead-facing chatbot. With an OpenAI key it asks
// the model for a structured reply; without one it falls back to keyword
// rules so the conversation flow still works end to end.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
)

var ErrLeadNotFound = errors.New("lead not found")

// Next-action types the bot may choose from. Anything else coming back
// from the model is rejected and replaced by the safe fallback.
const (
	ActionContinue = "continue"
	ActionBook     = "book_meeting"
	ActionEscalate = "escalate_human"
	ActionEnd      = "end"
)

// NextAction tells the frontend what to do after showing the reply.
type NextAction struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ChatResponse is the bot's structured answer to one message.
type ChatResponse struct {
	Reply            string     `json:"reply"`
	NextAction       NextAction `json:"next_action"`
	UpdatedLeadScore *int       `json:"updated_lead_score,omitempty"`
}

// completionClient is the slice of the OpenAI client the service uses.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service persists chat transcripts and produces replies.
type Service struct {
	db     *gorm.DB
	client completionClient
	model  string
	log    logger.Logger
}

// NewService creates the chatbot service. A nil client selects the
// rule-based demo mode.
func NewService(db *gorm.DB, apiKey, model string, log logger.Logger) *Service {
	var client completionClient
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return &Service{db: db, client: client, model: model, log: log}
}

const transcriptWindow = 20

const systemPromptFmt = `You are a friendly real-estate outreach assistant chatting with a property owner.

Lead context:
- Name: %s
- Property: %s (%s)
- Estimated value: %s
- Current status: %s

Answer in strict JSON with this shape:
{"reply": "<your message>", "next_action": {"type": "<continue|book_meeting|escalate_human|end>", "reason": "<why>"}, "updated_lead_score": <0-100 or null>}

Suggest book_meeting when the owner shows selling interest, escalate_human for questions you cannot answer, end when they ask to stop.`

func isValidAction(t string) bool {
	switch t {
	case ActionContinue, ActionBook, ActionEscalate, ActionEnd:
		return true
	}
	return false
}

// safeFallback is returned whenever the model output is missing or
// malformed. A human follows up, nothing is lost.
func safeFallback() *ChatResponse {
	return &ChatResponse{
		Reply: "Thanks for your message! One of our agents will get back to you shortly.",
		NextAction: NextAction{
			Type:   ActionEscalate,
			Reason: "could not produce a structured reply",
		},
	}
}

// Message handles one inbound chat message: stores it, produces a reply,
// stores that too, and returns the structured response.
func (s *Service) Message(ctx context.Context, leadID uint, message string) (*ChatResponse, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, leadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&models.ChatMessage{
		LeadID:  lead.ID,
		Role:    "user",
		Content: message,
	}).Error; err != nil {
		return nil, err
	}

	var resp *ChatResponse
	if s.client == nil {
		resp = s.ruleBasedReply(&lead, message)
	} else {
		resp = s.modelReply(ctx, &lead, message)
	}

	if err := s.db.WithContext(ctx).Create(&models.ChatMessage{
		LeadID:  lead.ID,
		Role:    "assistant",
		Content: resp.Reply,
	}).Error; err != nil {
		return nil, err
	}

	// Selling interest moves the lead forward in the funnel.
	if resp.NextAction.Type == ActionBook && lead.Status != models.LeadStatusBooked {
		if err := s.db.WithContext(ctx).Model(&lead).
			Update("status", models.LeadStatusInterested).Error; err != nil {
			s.log.Error("updating lead status from chat", "lead_id", lead.ID, "error", err)
		}
	}

	return resp, nil
}

// Transcript returns a lead's chat history, oldest first.
func (s *Service) Transcript(ctx context.Context, leadID uint) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *Service) modelReply(ctx context.Context, lead *models.Lead, message string) *ChatResponse {
	history, err := s.recentHistory(ctx, lead.ID)
	if err != nil {
		s.log.Error("loading chat history", "lead_id", lead.ID, "error", err)
	}

	prompt := fmt.Sprintf(systemPromptFmt,
		lead.FullName(), lead.Address, lead.PropertyType, lead.EstimatedValue, lead.Status)

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt},
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: msgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.log.Error("chat completion failed", "lead_id", lead.ID, "error", err)
		return safeFallback()
	}
	if len(resp.Choices) == 0 {
		return safeFallback()
	}

	return parseModelOutput(resp.Choices[0].Message.Content)
}

// parseModelOutput validates the model's JSON. Any shape problem yields
// the fallback rather than an error surfaced to the lead.
func parseModelOutput(raw string) *ChatResponse {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out ChatResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return safeFallback()
	}
	if out.Reply == "" || !isValidAction(out.NextAction.Type) {
		return safeFallback()
	}
	if out.UpdatedLeadScore != nil && (*out.UpdatedLeadScore < 0 || *out.UpdatedLeadScore > 100) {
		out.UpdatedLeadScore = nil
	}
	return &out
}

func (s *Service) recentHistory(ctx context.Context, leadID uint) ([]openai.ChatCompletionMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC, id DESC").
		Limit(transcriptWindow).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		role := openai.ChatMessageRoleUser
		if msgs[i].Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msgs[i].Content})
	}
	return out, nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ruleBasedReply is the deterministic demo mode used without an API key.
func (s *Service) ruleBasedReply(lead *models.Lead, message string) *ChatResponse {
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "unsubscribe", "stop contacting", "not interested", "remove me"):
		return &ChatResponse{
			Reply:      "Understood, we won't reach out again. Thanks for letting us know!",
			NextAction: NextAction{Type: ActionEnd, Reason: "lead asked to stop"},
		}
	case containsAny(lower, "book", "meeting", "schedule", "appointment", "call me"):
		score := 85
		return &ChatResponse{
			Reply: fmt.Sprintf("Great, %s! You can pick a time that works for you and we'll confirm right away.", lead.FirstName),
			NextAction: NextAction{Type: ActionBook, Reason: "lead wants to schedule"},
			UpdatedLeadScore: &score,
		}
	case containsAny(lower, "human", "agent", "person", "representative"):
		return &ChatResponse{
			Reply:      "Of course! I'll connect you with one of our agents right away.",
			NextAction: NextAction{Type: ActionEscalate, Reason: "lead asked for a human"},
		}
	case containsAny(lower, "price", "worth", "value", "estimate"):
		reply := "Happy to help with that."
		if lead.EstimatedValue != "" {
			reply = fmt.Sprintf("Homes like yours are currently estimated around %s. Want a detailed free valuation?", lead.EstimatedValue)
		}
		score := 70
		return &ChatResponse{
			Reply:            reply,
			NextAction:       NextAction{Type: ActionContinue, Reason: "lead asked about value"},
			UpdatedLeadScore: &score,
		}
	default:
		return &ChatResponse{
			Reply: fmt.Sprintf("Thanks for reaching out, %s! Are you curious what your property could sell for, or would you like to talk to an agent?", lead.FirstName),
			NextAction: NextAction{Type: ActionContinue, Reason: "keeping the conversation going"},
		}
	}
}
