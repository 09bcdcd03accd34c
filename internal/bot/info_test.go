package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-bot/internal/entitlement"
	"premium-bot/internal/models"
	"premium-bot/internal/repository"
)

type entStore struct {
	mu     sync.Mutex
	recs   map[string]models.Entitlement
	getErr error
}

func newEntStore() *entStore {
	return &entStore{recs: map[string]models.Entitlement{}}
}

func (s *entStore) Get(_ context.Context, userID string) (*models.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	ent, ok := s.recs[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ent, nil
}

func (s *entStore) Upsert(_ context.Context, ent *models.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[ent.UserID] = *ent
	return nil
}

func (s *entStore) DeleteIfExpired(_ context.Context, userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.recs[userID]
	if !ok || !ent.ExpiredAt(now) {
		return false, nil
	}
	delete(s.recs, userID)
	return true, nil
}

func (s *entStore) List(_ context.Context) ([]models.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Entitlement, 0, len(s.recs))
	for _, ent := range s.recs {
		out = append(out, ent)
	}
	return out, nil
}

func TestInfoPurgesExpiredEntitlement(t *testing.T) {
	store := newEntStore()
	ents := entitlement.NewService(store, nil)
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	ents.SetClock(func() time.Time { return now })

	expired := now.Add(-time.Hour)
	store.recs["42"] = models.Entitlement{UserID: "42", IsActive: true, PlanKind: models.PlanWeek, ExpiresAt: &expired}

	b := New(nil, Deps{Entitlements: ents})
	text, err := b.info(context.Background(), telego.User{ID: 42, FirstName: "Ann"})
	require.NoError(t, err)
	assert.Contains(t, text, "User Type: Free User")
	assert.Contains(t, text, "Premium Duration: N/A")

	_, err = store.Get(context.Background(), "42")
	assert.ErrorIs(t, err, repository.ErrNotFound, "reading /info removes the expired record")
}

func TestInfoShowsActiveEntitlement(t *testing.T) {
	store := newEntStore()
	ents := entitlement.NewService(store, nil)
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	ents.SetClock(func() time.Time { return now })

	expires := now.Add(50 * time.Hour)
	store.recs["42"] = models.Entitlement{UserID: "42", IsActive: true, PlanKind: models.PlanWeek, ExpiresAt: &expires}

	b := New(nil, Deps{Entitlements: ents})
	text, err := b.info(context.Background(), telego.User{ID: 42, FirstName: "Ann"})
	require.NoError(t, err)
	assert.Contains(t, text, "User Type: Premium User")
	assert.Contains(t, text, "Premium Duration: 2 days, 2 hours")
}

func TestInfoFailsClosedOnStoreOutage(t *testing.T) {
	store := newEntStore()
	store.getErr = errors.New("connection reset")
	b := New(nil, Deps{Entitlements: entitlement.NewService(store, nil)})

	_, err := b.info(context.Background(), telego.User{ID: 42})
	assert.ErrorIs(t, err, entitlement.ErrStoreUnavailable)
}
