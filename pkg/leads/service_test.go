package leads

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(db, nil, logger.Default()), db
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	lead := &models.Lead{Email: "  Ann@Example.COM ", FirstName: "Ann"}
	require.NoError(t, svc.Create(ctx, lead))
	assert.Equal(t, "ann@example.com", lead.Email)
	assert.Equal(t, models.LeadStatusUploaded, lead.Status)

	t.Run("duplicate email rejected", func(t *testing.T) {
		err := svc.Create(ctx, &models.Lead{Email: "ann@example.com", FirstName: "Other"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		err := svc.Create(ctx, &models.Lead{Email: "x@example.com", FirstName: "X", Status: "wat"})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		status := models.LeadStatusUploaded
		if i%5 == 0 {
			status = models.LeadStatusContacted
		}
		require.NoError(t, svc.Create(ctx, &models.Lead{
			Email:     fmt.Sprintf("lead%d@example.com", i),
			FirstName: fmt.Sprintf("Lead%d", i),
			Address:   fmt.Sprintf("%d Elm St", i),
			Status:    status,
		}))
	}

	t.Run("pagination", func(t *testing.T) {
		leads, page, err := svc.List(ctx, ListParams{Page: 1, PerPage: 10})
		require.NoError(t, err)
		assert.Len(t, leads, 10)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, 3, page.TotalPages)

		leads, _, err = svc.List(ctx, ListParams{Page: 3, PerPage: 10})
		require.NoError(t, err)
		assert.Len(t, leads, 5)
	})

	t.Run("status filter", func(t *testing.T) {
		leads, page, err := svc.List(ctx, ListParams{Status: models.LeadStatusContacted})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		for _, l := range leads {
			assert.Equal(t, models.LeadStatusContacted, l.Status)
		}
	})

	t.Run("search", func(t *testing.T) {
		_, page, err := svc.List(ctx, ListParams{Search: "lead7@"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)

		_, page, err = svc.List(ctx, ListParams{Search: "7 Elm"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total) // "7 Elm St" and "17 Elm St"
	})

	t.Run("defaults applied", func(t *testing.T) {
		leads, page, err := svc.List(ctx, ListParams{Page: 0, PerPage: 1000})
		require.NoError(t, err)
		assert.Len(t, leads, 20)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 20, page.PerPage)
	})
}

func TestGet(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann"}
	require.NoError(t, svc.Create(ctx, lead))

	now := db.NowFunc()
	require.NoError(t, db.Create(&models.EmailSequence{
		LeadID: lead.ID, Status: models.SequenceStatusSent, SentAt: &now, OpenedAt: &now,
	}).Error)
	require.NoError(t, db.Create(&models.Reply{LeadID: lead.ID, EmailBody: "interested!"}).Error)
	require.NoError(t, db.Create(&models.Booking{LeadID: lead.ID, ScheduledTime: now}).Error)

	detail, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", detail.Lead.Email)
	assert.Len(t, detail.EmailSequences, 1)
	assert.Len(t, detail.Replies, 1)
	assert.Len(t, detail.Bookings, 1)
	assert.Equal(t, int64(1), detail.Stats.EmailsSent)
	assert.Equal(t, int64(1), detail.Stats.EmailsOpened)
	assert.Equal(t, int64(1), detail.Stats.Replies)
	assert.Equal(t, int64(1), detail.Stats.Bookings)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func strPtr(s string) *string { return &s }

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann"}
	require.NoError(t, svc.Create(ctx, lead))

	updated, err := svc.Update(ctx, lead.ID, UpdateParams{
		LastName: strPtr("Lee"),
		Status:   strPtr(models.LeadStatusInterested),
		Notes:    strPtr("called twice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lee", updated.LastName)
	assert.Equal(t, models.LeadStatusInterested, updated.Status)
	assert.Equal(t, "Ann", updated.FirstName) // untouched

	_, err = svc.Update(ctx, lead.ID, UpdateParams{Status: strPtr("bogus")})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Update(ctx, 999, UpdateParams{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann"}
	require.NoError(t, svc.Create(ctx, lead))

	require.NoError(t, svc.SetStatus(ctx, lead.ID, models.LeadStatusBooked))

	detail, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusBooked, detail.Lead.Status)

	assert.ErrorIs(t, svc.SetStatus(ctx, lead.ID, "bogus"), ErrInvalidStatus)
	assert.ErrorIs(t, svc.SetStatus(ctx, 999, models.LeadStatusBooked), ErrNotFound)
}

func TestDelete_Cascades(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann"}
	require.NoError(t, svc.Create(ctx, lead))
	require.NoError(t, db.Create(&models.EmailSequence{LeadID: lead.ID}).Error)
	require.NoError(t, db.Create(&models.SMSMessage{LeadID: lead.ID, ToNumber: "+15551234567", Body: "hi"}).Error)
	require.NoError(t, db.Create(&models.ChatMessage{LeadID: lead.ID, Role: "user", Content: "hello"}).Error)

	require.NoError(t, svc.Delete(ctx, lead.ID))

	for _, model := range []any{&models.Lead{}, &models.EmailSequence{}, &models.SMSMessage{}, &models.ChatMessage{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	}

	assert.ErrorIs(t, svc.Delete(ctx, 999), ErrNotFound)
}

func TestRecordReply(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lead := &models.Lead{Email: "ann@example.com", FirstName: "Ann", Status: models.LeadStatusContacted}
	require.NoError(t, svc.Create(ctx, lead))

	sentiment := models.SentimentInterested
	require.NoError(t, svc.RecordReply(ctx, lead.ID, &models.Reply{
		EmailFrom: lead.Email,
		EmailBody: "Yes, tell me more!",
		Sentiment: &sentiment,
	}))

	var stored models.Lead
	require.NoError(t, db.First(&stored, lead.ID).Error)
	assert.Equal(t, models.LeadStatusReplied, stored.Status)

	var reply models.Reply
	require.NoError(t, db.Where("lead_id = ?", lead.ID).First(&reply).Error)
	assert.NotNil(t, reply.ReceivedAt)

	// A booked lead never regresses to replied.
	require.NoError(t, svc.SetStatus(ctx, lead.ID, models.LeadStatusBooked))
	require.NoError(t, svc.RecordReply(ctx, lead.ID, &models.Reply{EmailBody: "see you then"}))
	require.NoError(t, db.First(&stored, lead.ID).Error)
	assert.Equal(t, models.LeadStatusBooked, stored.Status)

	assert.ErrorIs(t, svc.RecordReply(ctx, 999, &models.Reply{}), ErrNotFound)
}

func TestImport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Pre-existing lead collides with one row of the upload.
	require.NoError(t, svc.Create(ctx, &models.Lead{Email: "dup@example.com", FirstName: "Dup"}))

	csv := strings.Join([]string{
		"email,first_name,last_name",
		"new1@example.com,New,One",
		"dup@example.com,Dup,Again",
		"new2@example.com,New,Two",
		"new2@example.com,New,TwoAgain",
		",Missing",
	}, "\n")

	summary, err := svc.Import(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 2, summary.Duplicates)
	assert.Len(t, summary.Errors, 1)

	_, page, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}
