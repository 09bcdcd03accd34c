package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"premium-bot/internal/metrics"
	"premium-bot/internal/models"
)

// ReminderDays is the number of whole days left at which a user is reminded
// to renew.
const ReminderDays = 2

type Entitlements interface {
	ListAll(ctx context.Context) ([]models.Entitlement, error)
	PurgeIfExpired(ctx context.Context, userID string) (bool, error)
	Now() time.Time
}

type Notifier interface {
	SendRenewalReminder(ctx context.Context, userID string, daysLeft int, expiresAt time.Time) error
}

type SweepReport struct {
	Scanned  int
	Reminded int
	Purged   int
	Failed   int
}

// Sweeper periodically purges expired entitlements and reminds users whose
// entitlement is about to run out.
type Sweeper struct {
	ents     Entitlements
	notifier Notifier
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(ents Entitlements, notifier Notifier, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		ents:     ents,
		notifier: notifier,
		interval: interval,
		log:      log,
	}
}

// Start blocks until ctx is done. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("expiry sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	s.log.Info("expiry sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("reminded", report.Reminded),
		zap.Int("purged", report.Purged),
		zap.Int("failed", report.Failed),
	)
}

// RunOnce performs one sweep over a snapshot of all entitlements.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	all, err := s.ents.ListAll(ctx)
	if err != nil {
		return report, err
	}
	metrics.SweepsTotal.Inc()

	for _, ent := range all {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Scanned++

		if ent.ExpiresAt == nil {
			continue
		}

		now := s.ents.Now()
		if ent.ExpiredAt(now) {
			purged, err := s.ents.PurgeIfExpired(ctx, ent.UserID)
			if err != nil {
				report.Failed++
				s.log.Warn("failed to purge expired entitlement", zap.String("user_id", ent.UserID), zap.Error(err))
				continue
			}
			if purged {
				report.Purged++
			}
			continue
		}

		days := int(ent.ExpiresAt.Sub(now) / (24 * time.Hour))
		if days != ReminderDays {
			continue
		}
		if err := s.notifier.SendRenewalReminder(ctx, ent.UserID, days, *ent.ExpiresAt); err != nil {
			report.Failed++
			s.log.Warn("failed to send renewal reminder", zap.String("user_id", ent.UserID), zap.Error(err))
			continue
		}
		report.Reminded++
		metrics.RemindersTotal.Inc()
	}
	return report, nil
}
