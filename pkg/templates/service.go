// Package templates manages reusable email templates and previews.
package templates

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/personalize"
)

var (
	ErrNotFound      = errors.New("template not found")
	ErrDuplicateName = errors.New("a template with this name already exists")
	ErrNoDefault     = errors.New("no default template configured")
)

// Service owns template persistence.
type Service struct {
	db  *gorm.DB
	log logger.Logger
}

// NewService creates the template service.
func NewService(db *gorm.DB, log logger.Logger) *Service {
	return &Service{db: db, log: log}
}

// Create inserts a template. Setting is_default clears the flag on every
// other template inside the same transaction.
func (s *Service) Create(ctx context.Context, tpl *models.EmailTemplate) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.EmailTemplate{}).
		Where("name = ?", tpl.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateName
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tpl.IsDefault {
			if err := clearDefault(tx); err != nil {
				return err
			}
		}
		return tx.Create(tpl).Error
	})
}

func clearDefault(tx *gorm.DB) error {
	return tx.Model(&models.EmailTemplate{}).
		Where("is_default = ?", true).
		Update("is_default", false).Error
}

// List returns all templates, default first, then newest.
func (s *Service) List(ctx context.Context) ([]models.EmailTemplate, error) {
	var tpls []models.EmailTemplate
	err := s.db.WithContext(ctx).
		Order("is_default DESC, created_at DESC").
		Find(&tpls).Error
	return tpls, err
}

// Get returns one template.
func (s *Service) Get(ctx context.Context, id uint) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := s.db.WithContext(ctx).First(&tpl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Default returns the template flagged as default.
func (s *Service) Default(ctx context.Context) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := s.db.WithContext(ctx).Where("is_default = ?", true).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoDefault
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// UpdateParams are the mutable template fields; nil means leave unchanged.
type UpdateParams struct {
	Name      *string
	Subject   *string
	Body      *string
	IsDefault *bool
}

// Update applies the non-nil fields. Promoting a template to default
// demotes the previous one.
func (s *Service) Update(ctx context.Context, id uint, params UpdateParams) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := s.db.WithContext(ctx).First(&tpl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if params.Name != nil && *params.Name != tpl.Name {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.EmailTemplate{}).
			Where("name = ? AND id <> ?", *params.Name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrDuplicateName
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if params.Name != nil {
			updates["name"] = *params.Name
		}
		if params.Subject != nil {
			updates["subject"] = *params.Subject
		}
		if params.Body != nil {
			updates["body"] = *params.Body
		}
		if params.IsDefault != nil {
			if *params.IsDefault {
				if err := clearDefault(tx); err != nil {
					return err
				}
			}
			updates["is_default"] = *params.IsDefault
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&tpl).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Delete removes a template. Campaigns keep their own snapshot of the
// template text, so deletion never touches past sends.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.EmailTemplate{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Preview holds a template rendered against sample lead data.
type Preview struct {
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Placeholders []string `json:"placeholders"`
	Unknown      []string `json:"unknown_placeholders,omitempty"`
}

// Preview renders a template against a sample lead and reports which
// placeholders it uses, flagging unsupported ones.
func (s *Service) Preview(ctx context.Context, id uint) (*Preview, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildPreview(tpl.Subject, tpl.Body), nil
}

// PreviewText renders ad-hoc subject/body without a stored template.
func (s *Service) PreviewText(subject, body string) *Preview {
	return buildPreview(subject, body)
}

func buildPreview(subject, body string) *Preview {
	sample := personalize.SampleLead()

	found := personalize.ExtractPlaceholders(subject + " " + body)
	var unknown []string
	for _, name := range found {
		if !personalize.IsSupported(name) {
			unknown = append(unknown, name)
		}
	}

	return &Preview{
		Subject:      personalize.Render(subject, sample),
		Body:         personalize.Render(body, sample),
		Placeholders: found,
		Unknown:      unknown,
	}
}

// defaultTemplates are seeded for new installs and demos.
var defaultTemplates = []models.EmailTemplate{
	{
		Name:    "Initial Outreach",
		Subject: "Quick question about {{address}}",
		Body: "Hi {{first_name}},\n\n" +
			"I noticed your property at {{address}} and wanted to reach out. " +
			"Homes like yours ({{property_type}}) in the area have been getting strong interest lately, " +
			"with estimates around {{estimated_value}}.\n\n" +
			"Would you be open to a quick chat about what your home could sell for in today's market?\n\n" +
			"Best regards",
		IsDefault: true,
	},
	{
		Name:    "Follow Up",
		Subject: "Re: {{address}}",
		Body: "Hi {{first_name}},\n\n" +
			"Just following up on my earlier note about {{address}}. " +
			"I work with several buyers actively looking in your neighborhood.\n\n" +
			"No pressure at all, but if you've ever wondered what your home is worth, " +
			"I'd be happy to put together a free valuation.\n\n" +
			"Best regards",
	},
	{
		Name:    "Final Touch",
		Subject: "Last note about {{address}}",
		Body: "Hi {{first_name}},\n\n" +
			"I'll keep this short. If selling {{address}} is ever on your radar, " +
			"my door is open. Feel free to reach out any time.\n\n" +
			"All the best",
	},
}

// SeedDefaults inserts the starter templates, skipping any name that
// already exists. Returns how many were created.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, tpl := range defaultTemplates {
		t := tpl
		err := s.Create(ctx, &t)
		if errors.Is(err, ErrDuplicateName) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
