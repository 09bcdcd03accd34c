package models

import (
	"time"
)

// Entitlement is the single current premium record of a user.
// A nil ExpiresAt means the grant never expires.
type Entitlement struct {
	UserID    string   `gorm:"primaryKey;size:64"`
	IsActive  bool     `gorm:"not null;default:true"`
	PlanKind  PlanKind `gorm:"size:16;not null"`
	GrantedAt time.Time
	ExpiresAt *time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (e *Entitlement) ExpiredAt(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
