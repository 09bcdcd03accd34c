package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"premium-bot/internal/models"
)

type PaymentLinkRepository struct {
	db *gorm.DB
}

func NewPaymentLinkRepository(db *gorm.DB) *PaymentLinkRepository {
	return &PaymentLinkRepository{db: db}
}

func (r *PaymentLinkRepository) Register(ctx context.Context, link *models.PaymentLink) error {
	link.URL = strings.TrimSpace(link.URL)
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("register payment link: %w", err)
	}
	return nil
}

func (r *PaymentLinkRepository) FindByURL(ctx context.Context, url string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	if err := r.db.WithContext(ctx).Where("url = ?", strings.TrimSpace(url)).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}
