package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"premium-bot/internal/metrics"
	"premium-bot/internal/models"
	"premium-bot/internal/repository"
	"premium-bot/internal/utils"
)

var ErrStoreUnavailable = errors.New("entitlement store unavailable")

type Store interface {
	Get(ctx context.Context, userID string) (*models.Entitlement, error)
	Upsert(ctx context.Context, ent *models.Entitlement) error
	DeleteIfExpired(ctx context.Context, userID string, now time.Time) (bool, error)
	List(ctx context.Context) ([]models.Entitlement, error)
}

type State int

const (
	StateNone State = iota
	StateActive
	StateExpired
	StateLifetime
)

// Remaining describes what is left of a user's entitlement for display.
type Remaining struct {
	State     State
	Left      time.Duration
	Plan      models.PlanKind
	ExpiresAt *time.Time
}

type Service struct {
	store Store
	locks *utils.KeyedMutex
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		locks: utils.NewKeyedMutex(),
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Now() time.Time {
	return s.now()
}

// IsEntitled reports whether the user currently holds a non-expired record.
// An expired record is purged before returning false. Store failures fail
// closed: the result is false together with ErrStoreUnavailable.
func (s *Service) IsEntitled(ctx context.Context, userID string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	ent, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.log.Error("entitlement lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	if ent.ExpiredAt(now) {
		if _, err := s.purge(ctx, userID, now); err != nil {
			return false, err
		}
		return false, nil
	}
	return ent.IsActive, nil
}

// Grant upserts a record for one plan duration starting now. A renewal
// restarts the clock, it never stacks on top of the remaining time.
func (s *Service) Grant(ctx context.Context, userID string, plan models.PlanKind) (*models.Entitlement, error) {
	if !plan.Valid() {
		return nil, fmt.Errorf("grant %s: unknown plan %q", userID, plan)
	}
	d := plan.Duration()
	return s.GrantWithDuration(ctx, userID, plan, &d)
}

// GrantLifetime upserts a record without expiry.
func (s *Service) GrantLifetime(ctx context.Context, userID string, plan models.PlanKind) (*models.Entitlement, error) {
	return s.GrantWithDuration(ctx, userID, plan, nil)
}

// GrantWithDuration is the general form of Grant. A nil duration means the
// record never expires.
func (s *Service) GrantWithDuration(ctx context.Context, userID string, plan models.PlanKind, duration *time.Duration) (*models.Entitlement, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now()
	ent := &models.Entitlement{
		UserID:    userID,
		IsActive:  true,
		PlanKind:  plan,
		GrantedAt: now,
		UpdatedAt: now,
	}
	if duration != nil {
		exp := now.Add(*duration)
		ent.ExpiresAt = &exp
	}

	if err := s.store.Upsert(ctx, ent); err != nil {
		s.log.Error("entitlement grant failed", zap.String("user_id", userID), zap.String("plan", string(plan)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.log.Info("entitlement granted",
		zap.String("user_id", userID),
		zap.String("plan", string(plan)),
		zap.Timep("expires_at", ent.ExpiresAt),
	)
	return ent, nil
}

// Remaining never mutates the store, an expired record is only reported.
func (s *Service) Remaining(ctx context.Context, userID string) (Remaining, error) {
	ent, err := s.store.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Remaining{State: StateNone}, nil
	}
	if err != nil {
		return Remaining{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r := Remaining{Plan: ent.PlanKind, ExpiresAt: ent.ExpiresAt}
	switch {
	case ent.ExpiresAt == nil:
		r.State = StateLifetime
	case ent.ExpiredAt(s.now()):
		r.State = StateExpired
	default:
		r.State = StateActive
		r.Left = ent.ExpiresAt.Sub(s.now())
	}
	return r, nil
}

// ListAll returns a snapshot of every record. Grants that land while the
// caller iterates are not reflected.
func (s *Service) ListAll(ctx context.Context) ([]models.Entitlement, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return all, nil
}

// PurgeIfExpired deletes the user's record when it is expired at call time.
func (s *Service) PurgeIfExpired(ctx context.Context, userID string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.purge(ctx, userID, s.now())
}

func (s *Service) purge(ctx context.Context, userID string, now time.Time) (bool, error) {
	deleted, err := s.store.DeleteIfExpired(ctx, userID, now)
	if err != nil {
		s.log.Error("entitlement purge failed", zap.String("user_id", userID), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if deleted {
		metrics.ExpiredPurgedTotal.Inc()
		s.log.Info("expired entitlement purged", zap.String("user_id", userID))
	}
	return deleted, nil
}
