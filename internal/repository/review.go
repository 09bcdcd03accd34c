package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"premium-bot/internal/models"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, review *models.ManualReview) error {
	if review.Status == "" {
		review.Status = models.ReviewPending
	}
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("create manual review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) Get(ctx context.Context, id uint) (*models.ManualReview, error) {
	var review models.ManualReview
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

// Decide moves a pending review to status. It reports false when the review
// was already decided by someone else.
func (r *ReviewRepository) Decide(ctx context.Context, id uint, status models.ReviewStatus, plan models.PlanKind, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     status,
		"decided_at": at.UTC(),
	}
	if plan != "" {
		updates["plan_kind"] = plan
	}
	res := r.db.WithContext(ctx).
		Model(&models.ManualReview{}).
		Where("id = ? AND status = ?", id, models.ReviewPending).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("decide manual review: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Reopen returns an approved review to pending with its claimed plan, for when
// the grant that should follow the approval did not happen.
func (r *ReviewRepository) Reopen(ctx context.Context, id uint, plan models.PlanKind) error {
	res := r.db.WithContext(ctx).
		Model(&models.ManualReview{}).
		Where("id = ? AND status = ?", id, models.ReviewApproved).
		Updates(map[string]any{
			"status":     models.ReviewPending,
			"plan_kind":  plan,
			"decided_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("reopen manual review: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
