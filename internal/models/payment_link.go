package models

import (
	"time"
)

// PaymentLink is a redirect payment URL registered by the operator.
// Users who paid through one submit it back as proof.
type PaymentLink struct {
	ID        uint     `gorm:"primaryKey"`
	URL       string   `gorm:"size:512;not null;uniqueIndex"`
	PlanKind  PlanKind `gorm:"size:16"`
	Note      string   `gorm:"size:255"`
	CreatedAt time.Time
}
