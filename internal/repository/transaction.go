package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"premium-bot/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Append(ctx context.Context, tx *models.PurchaseTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("append purchase transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.PurchaseTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []models.PurchaseTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list purchase transactions: %w", err)
	}
	return out, nil
}
