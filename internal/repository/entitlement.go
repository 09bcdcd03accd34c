package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"premium-bot/internal/models"
)

type EntitlementRepository struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) Get(ctx context.Context, userID string) (*models.Entitlement, error) {
	var ent models.Entitlement
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&ent).Error; err != nil {
		return nil, translate(err)
	}
	return &ent, nil
}

// Upsert overwrites whatever record the user had. Last write wins.
func (r *EntitlementRepository) Upsert(ctx context.Context, ent *models.Entitlement) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "plan_kind", "granted_at", "expires_at", "updated_at"}),
	}).Create(ent).Error
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}

// DeleteIfExpired removes the record only while it is still expired at now,
// so a renewal that landed in between is never deleted.
func (r *EntitlementRepository) DeleteIfExpired(ctx context.Context, userID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at IS NOT NULL AND expires_at <= ?", userID, now.UTC()).
		Delete(&models.Entitlement{})
	if res.Error != nil {
		return false, fmt.Errorf("delete expired entitlement: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *EntitlementRepository) List(ctx context.Context) ([]models.Entitlement, error) {
	var out []models.Entitlement
	if err := r.db.WithContext(ctx).Order("user_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	return out, nil
}
