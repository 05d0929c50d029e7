// Package demo seeds and resets showcase data so the product can be
// demonstrated without real leads or live providers.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/leads"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/templates"
)

var propertyTypes = []string{
	"Single Family", "Condo", "Townhouse", "Ranch", "Duplex", "Multi-Family",
}

// Service creates and clears demo data.
type Service struct {
	db        *gorm.DB
	leads     *leads.Service
	templates *templates.Service
	log       logger.Logger
}

// NewService creates the demo service.
func NewService(db *gorm.DB, leadSvc *leads.Service, tplSvc *templates.Service, log logger.Logger) *Service {
	return &Service{db: db, leads: leadSvc, templates: tplSvc, log: log}
}

// SeedSummary reports what a seeding run created.
type SeedSummary struct {
	Leads     int `json:"leads"`
	Templates int `json:"templates"`
}

// fakeLead builds one plausible property-owner lead.
func fakeLead(i int) *models.Lead {
	first := gofakeit.FirstName()
	last := gofakeit.LastName()
	addr := gofakeit.Address()

	value := gofakeit.Number(200, 1500) * 1000

	return &models.Lead{
		// Index keeps generated emails collision-free across runs.
		Email:          fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
		FirstName:      first,
		LastName:       last,
		Phone:          gofakeit.Phone(),
		Address:        fmt.Sprintf("%s, %s, %s", addr.Street, addr.City, addr.State),
		PropertyType:   propertyTypes[gofakeit.Number(0, len(propertyTypes)-1)],
		EstimatedValue: fmt.Sprintf("$%d,000", value/1000),
		Status:         models.LeadStatusUploaded,
		CreatedBy:      "demo",
	}
}

// Seed inserts count fake leads plus the default templates. Duplicate
// emails across repeated seeds are skipped silently.
func (s *Service) Seed(ctx context.Context, count int) (*SeedSummary, error) {
	if count <= 0 {
		count = 25
	}

	summary := &SeedSummary{}
	for i := 0; i < count; i++ {
		lead := fakeLead(i)
		err := s.leads.Create(ctx, lead)
		if err == leads.ErrDuplicateEmail {
			continue
		}
		if err != nil {
			return nil, err
		}
		summary.Leads++
	}

	created, err := s.templates.SeedDefaults(ctx)
	if err != nil {
		return nil, err
	}
	summary.Templates = created

	s.log.Info("demo data seeded", "leads", summary.Leads, "templates", summary.Templates)
	return summary, nil
}

// Reset wipes every table. Demo environments only; there is no undo.
func (s *Service) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.ChatMessage{},
			&models.SMSMessage{},
			&models.Booking{},
			&models.Reply{},
			&models.EmailSequence{},
			&models.Lead{},
			&models.Campaign{},
			&models.EmailTemplate{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var replyBodies = []struct {
	body      string
	sentiment string
}{
	{"Yes, I've actually been thinking about selling. What do you think it's worth?", models.SentimentInterested},
	{"Maybe next year, we're not ready yet.", models.SentimentNotNow},
	{"Please remove me from your list.", models.SentimentUnsubscribe},
	{"Who is this? How did you get my email?", models.SentimentOther},
}

// SimulateReplies fabricates inbound replies for a share of the
// contacted leads, exercising the reply flow without an inbound mail
// hookup.
func (s *Service) SimulateReplies(ctx context.Context, count int) (int, error) {
	var contacted []models.Lead
	err := s.db.WithContext(ctx).
		Where("status = ?", models.LeadStatusContacted).
		Limit(count).
		Find(&contacted).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range contacted {
		lead := &contacted[i]
		r := replyBodies[gofakeit.Number(0, len(replyBodies)-1)]

		sentiment := r.sentiment
		confidence := 0.6 + gofakeit.Float64Range(0, 0.39)
		now := time.Now().UTC()
		reply := &models.Reply{
			EmailFrom:       lead.Email,
			EmailSubject:    "Re: your note",
			EmailBody:       r.body,
			Sentiment:       &sentiment,
			ConfidenceScore: &confidence,
			AIModelUsed:     "demo",
			ReceivedAt:      &now,
		}
		if err := s.leads.RecordReply(ctx, lead.ID, reply); err != nil {
			return created, err
		}
		created++
	}

	s.log.Info("simulated replies", "count", created)
	return created, nil
}
