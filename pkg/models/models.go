package models

import (
	"time"
)

// Lead statuses form the outreach funnel, in order.
const (
	LeadStatusUploaded   = "uploaded"
	LeadStatusContacted  = "contacted"
	LeadStatusReplied    = "replied"
	LeadStatusInterested = "interested"
	LeadStatusBooked     = "booked"
	LeadStatusClosed     = "closed"
)

// LeadFunnelStatuses lists the lead statuses in funnel order.
var LeadFunnelStatuses = []string{
	LeadStatusUploaded,
	LeadStatusContacted,
	LeadStatusReplied,
	LeadStatusInterested,
	LeadStatusBooked,
	LeadStatusClosed,
}

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusPaused    = "paused"
)

// EmailSequence statuses
const (
	SequenceStatusPending   = "pending"
	SequenceStatusScheduled = "scheduled"
	SequenceStatusSent      = "sent"
	SequenceStatusOpened    = "opened"
	SequenceStatusReplied   = "replied"
	SequenceStatusBounced   = "bounced"
)

// SMSMessage statuses
const (
	SMSStatusPending     = "pending"
	SMSStatusSent        = "sent"
	SMSStatusDelivered   = "delivered"
	SMSStatusFailed      = "failed"
	SMSStatusUndelivered = "undelivered"
)

// Reply sentiments
const (
	SentimentInterested  = "interested"
	SentimentNotNow      = "not_now"
	SentimentUnsubscribe = "unsubscribe"
	SentimentOther       = "other"
)

// EmailTemplate is a named subject/body pair with {{placeholder}} tokens.
// At most one template is flagged as the default at a time.
type EmailTemplate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Subject   string    `gorm:"size:255;not null" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsDefault bool      `gorm:"default:false;index" json:"is_default"`
	CreatedBy string    `gorm:"size:100" json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Campaign is a container for organized outreach against a set of leads.
type Campaign struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	Description   string     `gorm:"type:text" json:"description,omitempty"`
	EmailTemplate string     `gorm:"type:text" json:"email_template,omitempty"`
	Status        string     `gorm:"size:50;default:'draft';index" json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	CreatedBy     string     `gorm:"size:100;index" json:"created_by,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Lead is a prospective contact (a property owner) targeted for outreach.
type Lead struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName      string    `gorm:"size:100;not null" json:"first_name"`
	LastName       string    `gorm:"size:100" json:"last_name,omitempty"`
	Company        string    `gorm:"size:100" json:"company,omitempty"`
	Phone          string    `gorm:"size:20" json:"phone,omitempty"`
	Address        string    `gorm:"size:255" json:"address,omitempty"`
	PropertyType   string    `gorm:"size:100" json:"property_type,omitempty"`
	EstimatedValue string    `gorm:"size:50" json:"estimated_value,omitempty"`
	Status         string    `gorm:"size:50;default:'uploaded';index" json:"status"`
	Notes          string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy      string    `gorm:"size:100;index" json:"created_by,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations, cascade-deleted with the lead
	EmailSequences []EmailSequence `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"-"`
	Replies        []Reply         `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"-"`
	Bookings       []Booking       `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"-"`
	SMSMessages    []SMSMessage    `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"-"`
	ChatMessages   []ChatMessage   `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"-"`
}

// FullName returns "first last" with a single separating space,
// trimmed when the last name is empty.
func (l *Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// EmailSequence is one tracked outbound email tied to a lead. The row is
// created in pending status before the provider call so an identifier
// exists to persist into; MessageID is the sole join key used by the
// SendGrid event webhook to locate this record.
type EmailSequence struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	LeadID       uint       `gorm:"not null;index" json:"lead_id"`
	CampaignID   *uint      `gorm:"index" json:"campaign_id,omitempty"`
	SequenceDay  int        `gorm:"default:1" json:"sequence_day"`
	EmailSubject string     `gorm:"size:255" json:"email_subject,omitempty"`
	EmailBody    string     `gorm:"type:text" json:"email_body,omitempty"`
	Status       string     `gorm:"size:50;default:'pending';index" json:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	ClickedAt    *time.Time `json:"clicked_at,omitempty"`
	RepliedAt    *time.Time `json:"replied_at,omitempty"`
	MessageID    string     `gorm:"size:255;index" json:"message_id,omitempty"`
	BounceReason string     `gorm:"size:255" json:"bounce_reason,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Reply is an inbound email response from a lead.
type Reply struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	LeadID          uint       `gorm:"not null;index" json:"lead_id"`
	EmailFrom       string     `gorm:"size:255" json:"email_from,omitempty"`
	EmailSubject    string     `gorm:"size:255" json:"email_subject,omitempty"`
	EmailBody       string     `gorm:"type:text" json:"email_body,omitempty"`
	Sentiment       *string    `gorm:"size:50;index" json:"sentiment,omitempty"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
	AIModelUsed     string     `gorm:"size:50" json:"ai_model_used,omitempty"`
	ReceivedAt      *time.Time `json:"received_at,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}

// Booking is a scheduled meeting created from a Calendly webhook.
type Booking struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	LeadID                 uint      `gorm:"not null;index" json:"lead_id"`
	CalendlyEventID        string    `gorm:"size:255" json:"calendly_event_id,omitempty"`
	EventURI               string    `gorm:"size:255" json:"event_uri,omitempty"`
	ScheduledTime          time.Time `gorm:"not null;index" json:"scheduled_time"`
	CalendlyInviteeEmail   string    `gorm:"size:255" json:"calendly_invitee_email,omitempty"`
	CalendlyResponseStatus *string   `gorm:"size:50" json:"calendly_response_status,omitempty"`
	CreatedAt              time.Time `gorm:"index" json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// SMSMessage is one tracked outbound SMS tied to a lead. ProviderSID is the
// join key for Twilio status callbacks.
type SMSMessage struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	LeadID       uint       `gorm:"not null;index" json:"lead_id"`
	ToNumber     string     `gorm:"size:20;not null" json:"to_number"`
	Body         string     `gorm:"type:text;not null" json:"body"`
	Status       string     `gorm:"size:50;default:'pending';index" json:"status"`
	ProviderSID  string     `gorm:"column:provider_sid;size:255;index" json:"provider_sid,omitempty"`
	ErrorMessage string     `gorm:"size:255" json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

// ChatMessage is one turn of a chatbot conversation with a lead.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LeadID    uint      `gorm:"not null;index" json:"lead_id"`
	Role      string    `gorm:"size:20;not null" json:"role"` // user | assistant | system
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// All returns every model for automigration, leaf tables first.
func All() []any {
	return []any{
		&EmailTemplate{},
		&Campaign{},
		&Lead{},
		&EmailSequence{},
		&Reply{},
		&Booking{},
		&SMSMessage{},
		&ChatMessage{},
	}
}
