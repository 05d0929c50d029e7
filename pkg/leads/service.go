// Package leads manages the lead lifecycle from CSV upload to closed.
package leads

import (
	"context"
	"errors"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/importer"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	"github.com/jordanlanch/estatereach/pkg/models"
)

var (
	ErrNotFound       = errors.New("lead not found")
	ErrDuplicateEmail = errors.New("a lead with this email already exists")
	ErrInvalidStatus  = errors.New("invalid lead status")
)

// ListParams filter and page the lead list.
type ListParams struct {
	Page    int
	PerPage int
	Status  string
	Search  string
}

// Detail is a lead with its full outreach history.
type Detail struct {
	Lead           models.Lead            `json:"lead"`
	EmailSequences []models.EmailSequence `json:"email_sequences"`
	Replies        []models.Reply         `json:"replies"`
	Bookings       []models.Booking       `json:"bookings"`
	Stats          DetailStats            `json:"stats"`
}

// DetailStats summarize a single lead's outreach history.
type DetailStats struct {
	EmailsSent   int64 `json:"emails_sent"`
	EmailsOpened int64 `json:"emails_opened"`
	Replies      int64 `json:"replies"`
	Bookings     int64 `json:"bookings"`
}

// ImportSummary reports the outcome of a CSV upload.
type ImportSummary struct {
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
}

// Service owns lead persistence and imports.
type Service struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewService creates the lead service.
func NewService(db *gorm.DB, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{db: db, metrics: m, log: log}
}

func validStatus(status string) bool {
	for _, s := range models.LeadFunnelStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Create inserts a lead. Emails are lowercased and must be unique.
func (s *Service) Create(ctx context.Context, lead *models.Lead) error {
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	if lead.Status == "" {
		lead.Status = models.LeadStatusUploaded
	}
	if !validStatus(lead.Status) {
		return ErrInvalidStatus
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("email = ?", lead.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateEmail
	}

	return s.db.WithContext(ctx).Create(lead).Error
}

// List returns a filtered, paginated page of leads, newest first.
func (s *Service) List(ctx context.Context, params ListParams) ([]models.Lead, *models.Pagination, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 || params.PerPage > 100 {
		params.PerPage = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Lead{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(address) LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var leads []models.Lead
	err := query.Order("created_at DESC").
		Offset((params.Page - 1) * params.PerPage).
		Limit(params.PerPage).
		Find(&leads).Error
	if err != nil {
		return nil, nil, err
	}

	totalPages := int((total + int64(params.PerPage) - 1) / int64(params.PerPage))
	return leads, &models.Pagination{
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Get returns one lead with its outreach history.
func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &Detail{Lead: lead}

	if err := s.db.WithContext(ctx).Where("lead_id = ?", id).
		Order("created_at DESC").Find(&detail.EmailSequences).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("lead_id = ?", id).
		Order("created_at DESC").Find(&detail.Replies).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("lead_id = ?", id).
		Order("scheduled_time DESC").Find(&detail.Bookings).Error; err != nil {
		return nil, err
	}

	for _, seq := range detail.EmailSequences {
		if seq.SentAt != nil {
			detail.Stats.EmailsSent++
		}
		if seq.OpenedAt != nil {
			detail.Stats.EmailsOpened++
		}
	}
	detail.Stats.Replies = int64(len(detail.Replies))
	detail.Stats.Bookings = int64(len(detail.Bookings))

	return detail, nil
}

// UpdateParams are the mutable lead fields; nil means leave unchanged.
type UpdateParams struct {
	FirstName      *string
	LastName       *string
	Company        *string
	Phone          *string
	Address        *string
	PropertyType   *string
	EstimatedValue *string
	Status         *string
	Notes          *string
}

// Update applies the non-nil fields to a lead.
func (s *Service) Update(ctx context.Context, id uint, params UpdateParams) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if params.FirstName != nil {
		updates["first_name"] = *params.FirstName
	}
	if params.LastName != nil {
		updates["last_name"] = *params.LastName
	}
	if params.Company != nil {
		updates["company"] = *params.Company
	}
	if params.Phone != nil {
		updates["phone"] = *params.Phone
	}
	if params.Address != nil {
		updates["address"] = *params.Address
	}
	if params.PropertyType != nil {
		updates["property_type"] = *params.PropertyType
	}
	if params.EstimatedValue != nil {
		updates["estimated_value"] = *params.EstimatedValue
	}
	if params.Status != nil {
		if !validStatus(*params.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *params.Status
	}
	if params.Notes != nil {
		updates["notes"] = *params.Notes
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&lead).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &lead, nil
}

// SetStatus moves a lead to the given funnel status.
func (s *Service) SetStatus(ctx context.Context, id uint, status string) error {
	if !validStatus(status) {
		return ErrInvalidStatus
	}
	res := s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a lead and its history. Child rows go first inside one
// transaction so a failure never strands orphans.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		err := tx.First(&lead, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		for _, child := range []any{
			&models.EmailSequence{},
			&models.Reply{},
			&models.Booking{},
			&models.SMSMessage{},
			&models.ChatMessage{},
		} {
			if err := tx.Where("lead_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&lead).Error
	})
}

// FindByEmail returns the lead with the given email, case-insensitively.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// RecordReply stores an inbound reply and moves the lead to replied,
// unless the lead already progressed further down the funnel.
func (s *Service) RecordReply(ctx context.Context, leadID uint, reply *models.Reply) error {
	var lead models.Lead
	err := s.db.WithContext(ctx).First(&lead, leadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	reply.LeadID = leadID
	if reply.ReceivedAt == nil {
		now := s.db.NowFunc().UTC()
		reply.ReceivedAt = &now
	}
	if err := s.db.WithContext(ctx).Create(reply).Error; err != nil {
		return err
	}

	if lead.Status == models.LeadStatusUploaded || lead.Status == models.LeadStatusContacted {
		return s.db.WithContext(ctx).Model(&lead).
			Update("status", models.LeadStatusReplied).Error
	}
	return nil
}

// Import parses a CSV stream and inserts the new leads. Duplicate emails
// (in the database or within the file) are counted, not errored.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	parsed, err := importer.Parse(r)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{Errors: parsed.Errors}
	if summary.Errors == nil {
		summary.Errors = []string{}
	}

	seen := make(map[string]bool, len(parsed.Leads))
	for i := range parsed.Leads {
		lead := parsed.Leads[i]
		if seen[lead.Email] {
			summary.Duplicates++
			continue
		}
		seen[lead.Email] = true

		err := s.Create(ctx, &lead)
		if errors.Is(err, ErrDuplicateEmail) {
			summary.Duplicates++
			continue
		}
		if err != nil {
			return nil, err
		}
		summary.Imported++
	}

	s.metrics.RecordLeadsImported(summary.Imported)
	s.log.Info("csv import finished",
		"imported", summary.Imported,
		"duplicates", summary.Duplicates,
		"row_errors", len(summary.Errors),
	)
	return summary, nil
}
