package email

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jordanlanch/estatereach/pkg/logger"
	"github.com/jordanlanch/estatereach/pkg/models"
	"github.com/jordanlanch/estatereach/pkg/retry"
	"github.com/jordanlanch/estatereach/pkg/testutil"
	"github.com/jordanlanch/estatereach/pkg/warming"
)

// scriptedProvider fails a fixed number of calls before succeeding.
type scriptedProvider struct {
	failures int
	calls    int
}

func (p *scriptedProvider) Mode() string { return "scripted" }

func (p *scriptedProvider) Send(_ context.Context, _, _, _ string) *SendResult {
	p.calls++
	if p.calls <= p.failures {
		return &SendResult{Mode: "scripted", Error: fmt.Sprintf("attempt %d: connection refused", p.calls)}
	}
	return &SendResult{Success: true, MessageID: fmt.Sprintf("msg_%d", p.calls), Mode: "scripted"}
}

func quietPolicy(slept *[]time.Duration) *retry.Policy {
	p := retry.NewPolicy(3)
	p.Sleep = func(_ context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
	return p
}

func newTestService(t *testing.T, db *gorm.DB, provider Provider, limit int, slept *[]time.Duration) (*Service, warming.Limiter) {
	t.Helper()
	limiter := warming.NewDailyLimiter(limit)
	svc := NewService(db, provider, limiter, quietPolicy(slept), limit, nil, logger.Default())
	return svc, limiter
}

func createPendingSequence(t *testing.T, db *gorm.DB, lead *models.Lead) *models.EmailSequence {
	t.Helper()
	seq := &models.EmailSequence{
		LeadID:       lead.ID,
		EmailSubject: "Hello",
		EmailBody:    "Body",
		Status:       models.SequenceStatusPending,
	}
	require.NoError(t, db.Create(seq).Error)
	return seq
}

func TestDispatch_Success(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})
	seq := createPendingSequence(t, db, lead)

	svc, limiter := newTestService(t, db, &scriptedProvider{}, 10, nil)

	res, err := svc.Dispatch(context.Background(), seq, lead.Email)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.Equal(t, "msg_1", res.MessageID)

	var stored models.EmailSequence
	require.NoError(t, db.First(&stored, seq.ID).Error)
	assert.Equal(t, models.SequenceStatusSent, stored.Status)
	assert.Equal(t, "msg_1", stored.MessageID)
	assert.NotNil(t, stored.SentAt)

	sent, err := limiter.SentToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestDispatch_RecoversAfterTransientFailures(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})
	seq := createPendingSequence(t, db, lead)

	provider := &scriptedProvider{failures: 2}
	var slept []time.Duration
	svc, limiter := newTestService(t, db, provider, 10, &slept)

	res, err := svc.Dispatch(context.Background(), seq, lead.Email)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, res.Outcome)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, slept)

	// The limit is consumed once, not once per attempt.
	sent, err := limiter.SentToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestDispatch_ExhaustedRetriesMarksBounced(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})
	seq := createPendingSequence(t, db, lead)

	provider := &scriptedProvider{failures: 100}
	svc, limiter := newTestService(t, db, provider, 10, nil)

	res, err := svc.Dispatch(context.Background(), seq, lead.Email)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 3, provider.calls)

	var stored models.EmailSequence
	require.NoError(t, db.First(&stored, seq.ID).Error)
	assert.Equal(t, models.SequenceStatusBounced, stored.Status)
	assert.NotEmpty(t, stored.BounceReason)
	assert.LessOrEqual(t, len(stored.BounceReason), 255)
	assert.Empty(t, stored.MessageID)

	sent, err := limiter.SentToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestDispatch_SkippedWhenLimitExhausted(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})

	provider := &scriptedProvider{}
	svc, _ := newTestService(t, db, provider, 2, nil)

	outcomes := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		seq := createPendingSequence(t, db, lead)
		res, err := svc.Dispatch(context.Background(), seq, lead.Email)
		require.NoError(t, err)
		outcomes = append(outcomes, res.Outcome)
	}

	assert.Equal(t, []string{OutcomeSent, OutcomeSent, OutcomeSkipped}, outcomes)
	// The skipped record never reached the provider.
	assert.Equal(t, 2, provider.calls)

	// Skipped sequences stay pending so a later run can pick them up.
	var pending int64
	require.NoError(t, db.Model(&models.EmailSequence{}).
		Where("status = ?", models.SequenceStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestStatus(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})
	svc, _ := newTestService(t, db, &scriptedProvider{}, 5, nil)

	seq := createPendingSequence(t, db, lead)
	_, err := svc.Dispatch(context.Background(), seq, lead.Email)
	require.NoError(t, err)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scripted", status.Mode)
	assert.Equal(t, 5, status.Limit)
	assert.Equal(t, 1, status.SentToday)
	assert.Equal(t, 4, status.Remaining)
}

func TestHandleEvent(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})
	svc, _ := newTestService(t, db, &scriptedProvider{}, 0, nil)

	seq := createPendingSequence(t, db, lead)
	_, err := svc.Dispatch(context.Background(), seq, lead.Email)
	require.NoError(t, err)

	t.Run("open advances status and sets opened_at", func(t *testing.T) {
		err := svc.HandleEvent(context.Background(), Event{
			Event:       "open",
			SGMessageID: "msg_1.filter001.1234",
		})
		require.NoError(t, err)

		var stored models.EmailSequence
		require.NoError(t, db.First(&stored, seq.ID).Error)
		assert.Equal(t, models.SequenceStatusOpened, stored.Status)
		assert.NotNil(t, stored.OpenedAt)
	})

	t.Run("click sets clicked_at", func(t *testing.T) {
		err := svc.HandleEvent(context.Background(), Event{Event: "click", SGMessageID: "msg_1"})
		require.NoError(t, err)

		var stored models.EmailSequence
		require.NoError(t, db.First(&stored, seq.ID).Error)
		assert.NotNil(t, stored.ClickedAt)
	})

	t.Run("bounce records reason", func(t *testing.T) {
		err := svc.HandleEvent(context.Background(), Event{
			Event:       "bounce",
			SGMessageID: "msg_1",
			Reason:      "mailbox full",
		})
		require.NoError(t, err)

		var stored models.EmailSequence
		require.NoError(t, db.First(&stored, seq.ID).Error)
		assert.Equal(t, models.SequenceStatusBounced, stored.Status)
		assert.Equal(t, "mailbox full", stored.BounceReason)
	})

	t.Run("unknown message id is a no-op", func(t *testing.T) {
		err := svc.HandleEvent(context.Background(), Event{Event: "open", SGMessageID: "nope"})
		assert.NoError(t, err)
	})

	t.Run("empty message id is a no-op", func(t *testing.T) {
		err := svc.HandleEvent(context.Background(), Event{Event: "open"})
		assert.NoError(t, err)
	})
}

func TestMarkReplied(t *testing.T) {
	db := testutil.NewDB(t)
	lead := testutil.CreateLead(t, db, &models.Lead{Email: "ann@example.com", FirstName: "Ann"})
	svc, _ := newTestService(t, db, &scriptedProvider{}, 0, nil)

	seq := createPendingSequence(t, db, lead)
	_, err := svc.Dispatch(context.Background(), seq, lead.Email)
	require.NoError(t, err)

	require.NoError(t, svc.MarkReplied(context.Background(), lead.ID))

	var stored models.EmailSequence
	require.NoError(t, db.First(&stored, seq.ID).Error)
	assert.Equal(t, models.SequenceStatusReplied, stored.Status)
	assert.NotNil(t, stored.RepliedAt)

	// No delivered email for this lead: nothing to flag, no error.
	other := testutil.CreateLead(t, db, &models.Lead{Email: "bo@example.com", FirstName: "Bo"})
	assert.NoError(t, svc.MarkReplied(context.Background(), other.ID))
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider(logger.Default())

	res := p.Send(context.Background(), "ann@example.com", "Hi", "Body")
	assert.True(t, res.Success)
	assert.Equal(t, ModeMock, res.Mode)
	assert.Regexp(t, `^mock_[0-9a-f]{12}$`, res.MessageID)

	// Ids are locally unique.
	res2 := p.Send(context.Background(), "ann@example.com", "Hi", "Body")
	assert.NotEqual(t, res.MessageID, res2.MessageID)
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc", normalizeMessageID("abc.filter001.recv"))
	assert.Equal(t, "abc", normalizeMessageID("abc"))
	assert.Equal(t, "", normalizeMessageID(""))
}
