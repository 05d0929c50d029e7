// Package campaigns runs templated email outreach over sets of leads.
package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/email"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/personalize"
	"github.com/jordanlanch/estatereach/pkg/templates"
)

var (
	ErrNotFound          = errors.New("campaign not found")
	ErrActive            = errors.New("campaign is active")
	ErrInvalidTransition = errors.New("invalid campaign status transition")
	ErrNoTemplate        = errors.New("no email template available for this campaign")
	ErrNoLeads           = errors.New("no leads to send to")
)

// snapshot is the subject/body pair frozen into the campaign at start
// time, so later template edits never change what a campaign sent.
type snapshot struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Service owns campaign persistence and the dispatch loop.
type Service struct {
	db        *gorm.DB
	email     *email.Service
	templates *templates.Service
	log       logger.Logger
}

// NewService creates the campaign service.
func NewService(db *gorm.DB, emailSvc *email.Service, tplSvc *templates.Service, log logger.Logger) *Service {
	return &Service{db: db, email: emailSvc, templates: tplSvc, log: log}
}

// Create inserts a campaign in draft status.
func (s *Service) Create(ctx context.Context, c *models.Campaign) error {
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	return s.db.WithContext(ctx).Create(c).Error
}

// List returns all campaigns, newest first.
func (s *Service) List(ctx context.Context) ([]models.Campaign, error) {
	var cs []models.Campaign
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&cs).Error
	return cs, err
}

// Stats are the per-campaign delivery counts, grouped by record status.
type Stats struct {
	TotalEmails int64 `json:"total_emails"`
	Pending     int64 `json:"pending"`
	Sent        int64 `json:"sent"`
	Opened      int64 `json:"opened"`
	Replied     int64 `json:"replied"`
	Bounced     int64 `json:"bounced"`
}

// Detail is a campaign with its delivery stats.
type Detail struct {
	Campaign models.Campaign `json:"campaign"`
	Stats    Stats           `json:"stats"`
}

// Get returns one campaign with delivery counts from its email records.
func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	stats, err := s.stats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Campaign: c, Stats: *stats}, nil
}

func (s *Service) stats(ctx context.Context, id uint) (*Stats, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.EmailSequence{}).
		Select("status, COUNT(*) AS n").
		Where("campaign_id = ?", id).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, r := range rows {
		stats.TotalEmails += r.N
		switch r.Status {
		case models.SequenceStatusPending, models.SequenceStatusScheduled:
			stats.Pending += r.N
		case models.SequenceStatusSent:
			stats.Sent += r.N
		case models.SequenceStatusOpened:
			stats.Opened += r.N
		case models.SequenceStatusReplied:
			stats.Replied += r.N
		case models.SequenceStatusBounced:
			stats.Bounced += r.N
		}
	}
	// Opened and replied records were delivered too.
	stats.Sent += stats.Opened + stats.Replied
	return stats, nil
}

// UpdateParams are the mutable campaign fields; nil means leave unchanged.
type UpdateParams struct {
	Name        *string
	Description *string
}

// Update edits a campaign's metadata. Active campaigns are locked.
func (s *Service) Update(ctx context.Context, id uint, params UpdateParams) (*models.Campaign, error) {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.Status == models.CampaignStatusActive {
		return nil, ErrActive
	}

	updates := map[string]any{}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Description != nil {
		updates["description"] = *params.Description
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&c).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Delete removes a non-active campaign. Its email records keep their
// lead linkage but lose the campaign reference.
func (s *Service) Delete(ctx context.Context, id uint) error {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if c.Status == models.CampaignStatusActive {
		return ErrActive
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EmailSequence{}).
			Where("campaign_id = ?", id).
			Update("campaign_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
}

// StartOptions select the message and the audience for a campaign run.
// Inline subject/body win over TemplateID, which wins over the stored
// default template. An empty LeadIDs targets every lead still in
// uploaded status.
type StartOptions struct {
	TemplateID *uint
	Subject    string
	Body       string
	LeadIDs    []uint
}

// LeadResult is the per-lead line of a run summary.
type LeadResult struct {
	LeadID    uint   `json:"lead_id"`
	Email     string `json:"email"`
	Outcome   string `json:"outcome"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunSummary aggregates one dispatch run.
type RunSummary struct {
	CampaignID uint         `json:"campaign_id"`
	Total      int          `json:"total"`
	Sent       int          `json:"sent"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Details    []LeadResult `json:"details"`
}

func (s *Service) resolveTemplate(ctx context.Context, opts StartOptions) (*snapshot, error) {
	if opts.Subject != "" && opts.Body != "" {
		return &snapshot{Subject: opts.Subject, Body: opts.Body}, nil
	}
	if opts.TemplateID != nil {
		tpl, err := s.templates.Get(ctx, *opts.TemplateID)
		if errors.Is(err, templates.ErrNotFound) {
			return nil, ErrNoTemplate
		}
		if err != nil {
			return nil, err
		}
		return &snapshot{Subject: tpl.Subject, Body: tpl.Body}, nil
	}
	tpl, err := s.templates.Default(ctx)
	if errors.Is(err, templates.ErrNoDefault) {
		return nil, ErrNoTemplate
	}
	if err != nil {
		return nil, err
	}
	return &snapshot{Subject: tpl.Subject, Body: tpl.Body}, nil
}

func (s *Service) targetLeads(ctx context.Context, opts StartOptions) ([]models.Lead, error) {
	var leads []models.Lead
	query := s.db.WithContext(ctx)
	if len(opts.LeadIDs) > 0 {
		query = query.Where("id IN ?", opts.LeadIDs)
	} else {
		query = query.Where("status = ?", models.LeadStatusUploaded)
	}
	if err := query.Find(&leads).Error; err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, ErrNoLeads
	}
	return leads, nil
}

// Start moves a campaign to active and runs the dispatch loop over its
// audience. Each lead is handled independently: one bad address or a
// provider hiccup affects only that lead's record, and a run that hits
// the daily limit leaves the remaining records pending.
func (s *Service) Start(ctx context.Context, id uint, opts StartOptions) (*RunSummary, error) {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	switch c.Status {
	case models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusPaused:
	default:
		return nil, ErrInvalidTransition
	}

	tpl, err := s.resolveTemplate(ctx, opts)
	if err != nil {
		return nil, err
	}
	leads, err := s.targetLeads(ctx, opts)
	if err != nil {
		return nil, err
	}

	snap, _ := json.Marshal(tpl)
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&c).Updates(map[string]any{
		"status":         models.CampaignStatusActive,
		"email_template": string(snap),
		"started_at":     now,
	}).Error; err != nil {
		return nil, err
	}

	summary := s.dispatch(ctx, &c, tpl, leads)

	// The loop is synchronous, so the campaign is finished when it
	// returns, whatever mix of outcomes it produced.
	ended := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&c).Updates(map[string]any{
		"status":   models.CampaignStatusCompleted,
		"ended_at": ended,
	}).Error; err != nil {
		return nil, err
	}

	s.log.Info("campaign run finished",
		"campaign_id", c.ID,
		"total", summary.Total,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

func (s *Service) dispatch(ctx context.Context, c *models.Campaign, tpl *snapshot, leads []models.Lead) *RunSummary {
	summary := &RunSummary{CampaignID: c.ID, Total: len(leads)}

	for i := range leads {
		lead := &leads[i]
		result := LeadResult{LeadID: lead.ID, Email: lead.Email}

		subject := personalize.Render(tpl.Subject, lead)
		body := personalize.Render(tpl.Body, lead)

		campaignID := c.ID
		seq := &models.EmailSequence{
			LeadID:       lead.ID,
			CampaignID:   &campaignID,
			EmailSubject: subject,
			EmailBody:    body,
			Status:       models.SequenceStatusPending,
		}
		if err := s.db.WithContext(ctx).Create(seq).Error; err != nil {
			result.Outcome = email.OutcomeFailed
			result.Error = err.Error()
			summary.Failed++
			summary.Details = append(summary.Details, result)
			continue
		}

		res, err := s.email.Dispatch(ctx, seq, lead.Email)
		if err != nil {
			result.Outcome = email.OutcomeFailed
			result.Error = err.Error()
			summary.Failed++
			summary.Details = append(summary.Details, result)
			continue
		}

		result.Outcome = res.Outcome
		result.MessageID = res.MessageID
		result.Error = res.Error

		switch res.Outcome {
		case email.OutcomeSent:
			summary.Sent++
			if lead.Status == models.LeadStatusUploaded {
				if err := s.db.WithContext(ctx).Model(lead).
					Update("status", models.LeadStatusContacted).Error; err != nil {
					s.log.Error("updating lead status", "lead_id", lead.ID, "error", err)
				}
			}
		case email.OutcomeFailed:
			summary.Failed++
		case email.OutcomeSkipped:
			summary.Skipped++
		}
		summary.Details = append(summary.Details, result)
	}

	return summary
}

// Pause suspends an active campaign.
func (s *Service) Pause(ctx context.Context, id uint) error {
	return s.transition(ctx, id, models.CampaignStatusActive, models.CampaignStatusPaused)
}

// Resume reactivates a paused campaign.
func (s *Service) Resume(ctx context.Context, id uint) error {
	return s.transition(ctx, id, models.CampaignStatusPaused, models.CampaignStatusActive)
}

// Complete closes a campaign and stamps ended_at.
func (s *Service) Complete(ctx context.Context, id uint) error {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if c.Status != models.CampaignStatusActive && c.Status != models.CampaignStatusPaused {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&c).Updates(map[string]any{
		"status":   models.CampaignStatusCompleted,
		"ended_at": now,
	}).Error
}

func (s *Service) transition(ctx context.Context, id uint, from, to string) error {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if c.Status != from {
		return ErrInvalidTransition
	}

	return s.db.WithContext(ctx).Model(&c).Update("status", to).Error
}

// QuickStart creates a campaign and immediately runs it, the one-click
// path used by the dashboard.
func (s *Service) QuickStart(ctx context.Context, name string, opts StartOptions) (*RunSummary, error) {
	if name == "" {
		name = "Quick Campaign " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	c := &models.Campaign{Name: name, Status: models.CampaignStatusDraft}
	if err := s.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.Start(ctx, c.ID, opts)
}

// Emails returns a campaign's delivery records, newest first.
func (s *Service) Emails(ctx context.Context, id uint) ([]models.EmailSequence, error) {
	var c models.Campaign
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var seqs []models.EmailSequence
	err = s.db.WithContext(ctx).
		Where("campaign_id = ?", id).
		Order("created_at DESC").
		Find(&seqs).Error
	return seqs, err
}
