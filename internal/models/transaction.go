package models

import (
	"time"
)

// PurchaseTransaction is an append-only audit entry. It is not consulted
// when deciding whether a user is entitled.
type PurchaseTransaction struct {
	ID               uint     `gorm:"primaryKey"`
	UserID           string   `gorm:"size:64;not null;index"`
	Gateway          string   `gorm:"size:32;not null"`
	PlanKind         PlanKind `gorm:"size:16;not null"`
	Amount           int64    `gorm:"not null"`
	Currency         string   `gorm:"size:8"`
	GatewayReference string   `gorm:"size:255;index"`
	CreatedAt        time.Time
}
