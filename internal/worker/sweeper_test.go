package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-bot/internal/models"
)

type entStub struct {
	now     time.Time
	records []models.Entitlement
	purged  []string
	listErr error
}

func (e *entStub) ListAll(context.Context) ([]models.Entitlement, error) {
	return e.records, e.listErr
}

func (e *entStub) PurgeIfExpired(_ context.Context, userID string) (bool, error) {
	e.purged = append(e.purged, userID)
	return true, nil
}

func (e *entStub) Now() time.Time { return e.now }

type reminderStub struct {
	sent []string
	err  error
}

func (r *reminderStub) SendRenewalReminder(_ context.Context, userID string, daysLeft int, _ time.Time) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, userID)
	return nil
}

func expiringIn(now time.Time, d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestRunOnceRemindsAtTwoDays(t *testing.T) {
	now := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	ents := &entStub{now: now, records: []models.Entitlement{
		{UserID: "two-days", ExpiresAt: expiringIn(now, 2*24*time.Hour+3*time.Hour)},
		{UserID: "exactly-two", ExpiresAt: expiringIn(now, 48*time.Hour)},
		{UserID: "almost-two", ExpiresAt: expiringIn(now, 47*time.Hour)},
		{UserID: "three-days", ExpiresAt: expiringIn(now, 3*24*time.Hour)},
		{UserID: "expired", ExpiresAt: expiringIn(now, -time.Minute)},
		{UserID: "lifetime"},
	}}
	reminders := &reminderStub{}
	s := NewSweeper(ents, reminders, time.Hour, nil)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"two-days", "exactly-two"}, reminders.sent)
	assert.Equal(t, []string{"expired"}, ents.purged)
	assert.Equal(t, SweepReport{Scanned: 6, Reminded: 2, Purged: 1}, report)
}

func TestRunOnceSendsOneReminderPerUser(t *testing.T) {
	now := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	ents := &entStub{now: now, records: []models.Entitlement{
		{UserID: "u", ExpiresAt: expiringIn(now, 60*time.Hour)},
	}}
	reminders := &reminderStub{}
	s := NewSweeper(ents, reminders, time.Hour, nil)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, reminders.sent, 1)

	// A day later the same record rounds to one day and is left alone.
	ents.now = now.Add(24 * time.Hour)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, reminders.sent, 1)
}

func TestRunOnceNotifierFailureDoesNotStopSweep(t *testing.T) {
	now := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	ents := &entStub{now: now, records: []models.Entitlement{
		{UserID: "a", ExpiresAt: expiringIn(now, 50*time.Hour)},
		{UserID: "b", ExpiresAt: expiringIn(now, -time.Hour)},
	}}
	s := NewSweeper(ents, &reminderStub{err: errors.New("blocked by user")}, time.Hour, nil)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Purged)
}

func TestRunOnceListFailure(t *testing.T) {
	s := NewSweeper(&entStub{listErr: errors.New("db down")}, &reminderStub{}, time.Hour, nil)

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStopsWithContext(t *testing.T) {
	ents := &entStub{now: time.Now()}
	s := NewSweeper(ents, &reminderStub{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
