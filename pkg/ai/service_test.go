package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/testutil"
)

// stubClient returns a canned completion or an error.
type stubClient struct {
	content string
	err     error
	gotReq  openai.ChatCompletionRequest
}

func (c *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.gotReq = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.content}},
		},
	}, nil
}

func newRuleService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(db, "", "gpt-4o-mini", logger.Default()), db
}

func newModelService(t *testing.T, client *stubClient) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewService(db, "sk-test", "gpt-4o-mini", logger.Default())
	svc.client = client
	return svc, db
}

func createLead(t *testing.T, db *gorm.DB) *models.Lead {
	t.Helper()
	return testutil.CreateLead(t, db, &models.Lead{
		Email:          "ann@example.com",
		FirstName:      "Ann",
		Address:        "1 Elm St",
		EstimatedValue: "$300,000",
		Status:         models.LeadStatusContacted,
	})
}

func TestMessage_LeadNotFound(t *testing.T) {
	svc, _ := newRuleService(t)
	_, err := svc.Message(context.Background(), 999, "hello")
	assert.ErrorIs(t, err, ErrLeadNotFound)
}

func TestMessage_PersistsTranscript(t *testing.T) {
	svc, _ := newRuleService(t)
	lead := createLead(t, svc.db)

	resp, err := svc.Message(context.Background(), lead.ID, "hello there")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Reply)

	transcript, err := svc.Transcript(context.Background(), lead.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "hello there", transcript[0].Content)
	assert.Equal(t, "assistant", transcript[1].Role)
	assert.Equal(t, resp.Reply, transcript[1].Content)
}

func TestRuleBasedReplies(t *testing.T) {
	svc, _ := newRuleService(t)
	lead := createLead(t, svc.db)
	ctx := context.Background()

	tests := []struct {
		name    string
		message string
		action  string
	}{
		{name: "booking intent", message: "Can we schedule a call?", action: ActionBook},
		{name: "opt out", message: "please unsubscribe me", action: ActionEnd},
		{name: "wants a human", message: "let me talk to a real person", action: ActionEscalate},
		{name: "asks about value", message: "what is my home worth?", action: ActionContinue},
		{name: "anything else", message: "hi", action: ActionContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Message(ctx, lead.ID, tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.action, resp.NextAction.Type)
			assert.NotEmpty(t, resp.Reply)
			assert.NotEmpty(t, resp.NextAction.Reason)
		})
	}
}

func TestMessage_BookingIntentAdvancesLead(t *testing.T) {
	svc, db := newRuleService(t)
	lead := createLead(t, db)

	_, err := svc.Message(context.Background(), lead.ID, "I'd like to book a meeting")
	require.NoError(t, err)

	var stored models.Lead
	require.NoError(t, db.First(&stored, lead.ID).Error)
	assert.Equal(t, models.LeadStatusInterested, stored.Status)
}

func TestModelReply_WellFormed(t *testing.T) {
	client := &stubClient{
		content: `{"reply":"Sure, let's talk!","next_action":{"type":"book_meeting","reason":"wants to sell"},"updated_lead_score":90}`,
	}
	svc, _ := newModelService(t, client)
	lead := createLead(t, svc.db)

	resp, err := svc.Message(context.Background(), lead.ID, "I want to sell")
	require.NoError(t, err)
	assert.Equal(t, "Sure, let's talk!", resp.Reply)
	assert.Equal(t, ActionBook, resp.NextAction.Type)
	require.NotNil(t, resp.UpdatedLeadScore)
	assert.Equal(t, 90, *resp.UpdatedLeadScore)

	// Lead context made it into the system prompt.
	require.NotEmpty(t, client.gotReq.Messages)
	assert.Contains(t, client.gotReq.Messages[0].Content, "1 Elm St")
}

func TestModelReply_FallbackNeverSurfacesErrors(t *testing.T) {
	lead := func(svc *Service) *models.Lead { return createLead(t, svc.db) }

	tests := []struct {
		name   string
		client *stubClient
	}{
		{name: "api error", client: &stubClient{err: errors.New("rate limited")}},
		{name: "not json", client: &stubClient{content: "I think you should sell!"}},
		{name: "empty reply", client: &stubClient{content: `{"reply":"","next_action":{"type":"continue","reason":"x"}}`}},
		{name: "unknown action", client: &stubClient{content: `{"reply":"hi","next_action":{"type":"launch_rocket","reason":"x"}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newModelService(t, tt.client)
			l := lead(svc)

			resp, err := svc.Message(context.Background(), l.ID, "hello")
			require.NoError(t, err)
			assert.Equal(t, ActionEscalate, resp.NextAction.Type)
			assert.NotEmpty(t, resp.Reply)
		})
	}
}

func TestParseModelOutput(t *testing.T) {
	t.Run("strips code fences", func(t *testing.T) {
		out := parseModelOutput("```json\n{\"reply\":\"hi\",\"next_action\":{\"type\":\"continue\",\"reason\":\"r\"}}\n```")
		assert.Equal(t, "hi", out.Reply)
		assert.Equal(t, ActionContinue, out.NextAction.Type)
	})

	t.Run("out of range score dropped", func(t *testing.T) {
		out := parseModelOutput(`{"reply":"hi","next_action":{"type":"continue","reason":"r"},"updated_lead_score":250}`)
		assert.Equal(t, "hi", out.Reply)
		assert.Nil(t, out.UpdatedLeadScore)
	})
}
