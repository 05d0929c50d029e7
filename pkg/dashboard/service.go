// Package dashboard aggregates outreach numbers for the frontend, with a
// short-lived Redis cache in front of the heavier queries.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/cache"
	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/metrics"
	"github.com/jordanlanch/estatereach/pkg/models"
)

const cacheTTL = 30 * time.Second

// Stats is the headline numbers block.
type Stats struct {
	TotalLeads      int64            `json:"total_leads"`
	LeadsByStatus   map[string]int64 `json:"leads_by_status"`
	TotalCampaigns  int64            `json:"total_campaigns"`
	ActiveCampaigns int64            `json:"active_campaigns"`
	EmailsSent      int64            `json:"emails_sent"`
	EmailsOpened    int64            `json:"emails_opened"`
	EmailsBounced   int64            `json:"emails_bounced"`
	OpenRate        float64          `json:"open_rate"`
	ReplyRate       float64          `json:"reply_rate"`
	TotalReplies    int64            `json:"total_replies"`
	TotalBookings   int64            `json:"total_bookings"`
	TotalSMS        int64            `json:"total_sms"`
}

// FunnelStage is one step of the lead funnel with its conversion from
// the previous stage.
type FunnelStage struct {
	Status     string  `json:"status"`
	Count      int64   `json:"count"`
	Conversion float64 `json:"conversion"` // share of the previous stage, 0..1
}

// ActivityItem is one row of the recent-activity feed.
type ActivityItem struct {
	Type      string    `json:"type"` // email_sent, reply, booking, sms
	LeadID    uint      `json:"lead_id"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// CampaignOverview is the campaign list annotated with delivery counts.
type CampaignOverview struct {
	Campaign models.Campaign `json:"campaign"`
	Emails   int64           `json:"emails"`
	Sent     int64           `json:"sent"`
	Bounced  int64           `json:"bounced"`
}

// Overview bundles everything the dashboard landing page shows.
type Overview struct {
	Stats    Stats          `json:"stats"`
	Funnel   []FunnelStage  `json:"funnel"`
	Activity []ActivityItem `json:"activity"`
}

// QuickStats is the lightweight header widget payload.
type QuickStats struct {
	TotalLeads    int64 `json:"total_leads"`
	EmailsSent    int64 `json:"emails_sent"`
	TotalReplies  int64 `json:"total_replies"`
	TotalBookings int64 `json:"total_bookings"`
}

// Service computes dashboard aggregates. The cache client may be nil, in
// which case every call hits the database.
type Service struct {
	db      *gorm.DB
	cache   *cache.Client
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewService creates the dashboard service.
func NewService(db *gorm.DB, c *cache.Client, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{db: db, cache: c, metrics: m, log: log}
}

// cached runs compute, backed by a 30s Redis entry. Cache trouble is
// logged and absorbed; the dashboard always answers from the database if
// it has to.
func cached[T any](ctx context.Context, s *Service, key string, compute func() (*T, error)) (*T, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		if err == nil && raw != "" {
			var out T
			if err := json.Unmarshal([]byte(raw), &out); err == nil {
				s.metrics.RecordCacheHit("redis")
				return &out, nil
			}
		}
		s.metrics.RecordCacheMiss("redis")
	}

	out, err := compute()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), cacheTTL); err != nil {
				s.log.Warn("caching dashboard payload", "key", key, "error", err)
			}
		}
	}
	return out, nil
}

// Stats returns the headline numbers.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return cached(ctx, s, "dashboard:stats", func() (*Stats, error) {
		return s.computeStats(ctx)
	})
}

func (s *Service) computeStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{LeadsByStatus: map[string]int64{}}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Lead{}).Count(&stats.TotalLeads).Error; err != nil {
		return nil, err
	}

	type statusRow struct {
		Status string
		N      int64
	}
	var rows []statusRow
	if err := db.Model(&models.Lead{}).
		Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.LeadsByStatus[r.Status] = r.N
	}

	if err := db.Model(&models.Campaign{}).Count(&stats.TotalCampaigns).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Campaign{}).
		Where("status = ?", models.CampaignStatusActive).
		Count(&stats.ActiveCampaigns).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.EmailSequence{}).
		Where("sent_at IS NOT NULL").Count(&stats.EmailsSent).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.EmailSequence{}).
		Where("opened_at IS NOT NULL").Count(&stats.EmailsOpened).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.EmailSequence{}).
		Where("status = ?", models.SequenceStatusBounced).
		Count(&stats.EmailsBounced).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Reply{}).Count(&stats.TotalReplies).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Booking{}).Count(&stats.TotalBookings).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.SMSMessage{}).Count(&stats.TotalSMS).Error; err != nil {
		return nil, err
	}

	if stats.EmailsSent > 0 {
		stats.OpenRate = float64(stats.EmailsOpened) / float64(stats.EmailsSent)
		stats.ReplyRate = float64(stats.TotalReplies) / float64(stats.EmailsSent)
	}
	return stats, nil
}

// Funnel returns lead counts per funnel stage in order, with stage-to-
// stage conversion. A stage's count includes every lead at or past it.
func (s *Service) Funnel(ctx context.Context) ([]FunnelStage, error) {
	out, err := cached(ctx, s, "dashboard:funnel", func() (*[]FunnelStage, error) {
		stages, err := s.computeFunnel(ctx)
		if err != nil {
			return nil, err
		}
		return &stages, nil
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func (s *Service) computeFunnel(ctx context.Context) ([]FunnelStage, error) {
	byStatus := map[string]int64{}
	type statusRow struct {
		Status string
		N      int64
	}
	var rows []statusRow
	if err := s.db.WithContext(ctx).Model(&models.Lead{}).
		Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		byStatus[r.Status] = r.N
	}

	// Cumulative from the back: a booked lead has also been contacted.
	stages := make([]FunnelStage, len(models.LeadFunnelStatuses))
	var running int64
	for i := len(models.LeadFunnelStatuses) - 1; i >= 0; i-- {
		status := models.LeadFunnelStatuses[i]
		running += byStatus[status]
		stages[i] = FunnelStage{Status: status, Count: running}
	}

	for i := range stages {
		if i == 0 {
			stages[i].Conversion = 1
			continue
		}
		if stages[i-1].Count > 0 {
			stages[i].Conversion = float64(stages[i].Count) / float64(stages[i-1].Count)
		}
	}
	return stages, nil
}

const activityLimit = 20

// Activity returns the most recent outreach events across all leads.
func (s *Service) Activity(ctx context.Context) ([]ActivityItem, error) {
	db := s.db.WithContext(ctx)
	var items []ActivityItem

	var seqs []models.EmailSequence
	if err := db.Where("sent_at IS NOT NULL").
		Order("sent_at DESC").Limit(activityLimit).Find(&seqs).Error; err != nil {
		return nil, err
	}
	for _, seq := range seqs {
		items = append(items, ActivityItem{
			Type:      "email_sent",
			LeadID:    seq.LeadID,
			Detail:    seq.EmailSubject,
			Timestamp: *seq.SentAt,
		})
	}

	var replies []models.Reply
	if err := db.Order("created_at DESC").Limit(activityLimit).Find(&replies).Error; err != nil {
		return nil, err
	}
	for _, r := range replies {
		items = append(items, ActivityItem{
			Type:      "reply",
			LeadID:    r.LeadID,
			Detail:    r.EmailSubject,
			Timestamp: r.CreatedAt,
		})
	}

	var bookings []models.Booking
	if err := db.Order("created_at DESC").Limit(activityLimit).Find(&bookings).Error; err != nil {
		return nil, err
	}
	for _, b := range bookings {
		items = append(items, ActivityItem{
			Type:      "booking",
			LeadID:    b.LeadID,
			Detail:    b.ScheduledTime.Format(time.RFC3339),
			Timestamp: b.CreatedAt,
		})
	}

	var sms []models.SMSMessage
	if err := db.Where("sent_at IS NOT NULL").
		Order("sent_at DESC").Limit(activityLimit).Find(&sms).Error; err != nil {
		return nil, err
	}
	for _, m := range sms {
		items = append(items, ActivityItem{
			Type:      "sms",
			LeadID:    m.LeadID,
			Detail:    m.Body,
			Timestamp: *m.SentAt,
		})
	}

	sortActivity(items)
	if len(items) > activityLimit {
		items = items[:activityLimit]
	}
	return items, nil
}

// sortActivity orders newest first. Insertion sort; the slices involved
// are tiny and already mostly ordered.
func sortActivity(items []ActivityItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Timestamp.After(items[j-1].Timestamp); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// Campaigns returns every campaign with its delivery counts.
func (s *Service) Campaigns(ctx context.Context) ([]CampaignOverview, error) {
	var cs []models.Campaign
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&cs).Error; err != nil {
		return nil, err
	}

	out := make([]CampaignOverview, 0, len(cs))
	for _, c := range cs {
		o := CampaignOverview{Campaign: c}
		if err := s.db.WithContext(ctx).Model(&models.EmailSequence{}).
			Where("campaign_id = ?", c.ID).Count(&o.Emails).Error; err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(&models.EmailSequence{}).
			Where("campaign_id = ? AND sent_at IS NOT NULL", c.ID).Count(&o.Sent).Error; err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(&models.EmailSequence{}).
			Where("campaign_id = ? AND status = ?", c.ID, models.SequenceStatusBounced).
			Count(&o.Bounced).Error; err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Quick returns the header widget numbers.
func (s *Service) Quick(ctx context.Context) (*QuickStats, error) {
	return cached(ctx, s, "dashboard:quick", func() (*QuickStats, error) {
		q := &QuickStats{}
		db := s.db.WithContext(ctx)
		if err := db.Model(&models.Lead{}).Count(&q.TotalLeads).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.EmailSequence{}).
			Where("sent_at IS NOT NULL").Count(&q.EmailsSent).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Reply{}).Count(&q.TotalReplies).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Booking{}).Count(&q.TotalBookings).Error; err != nil {
			return nil, err
		}
		return q, nil
	})
}

// Overview bundles stats, funnel and activity for the landing page.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	funnel, err := s.Funnel(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.Activity(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{Stats: *stats, Funnel: funnel, Activity: activity}, nil
}

// InvalidateCache drops the cached dashboard payloads, called after bulk
// writes like demo seeding.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, "dashboard:*"); err != nil {
		s.log.Warn("invalidating dashboard cache", "error", err)
	}
}
