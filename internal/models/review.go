package models

import (
	"time"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type ProofKind string

const (
	ProofImage ProofKind = "image"
	ProofLink  ProofKind = "link"
)

// ManualReview is a proof of payment waiting for an operator decision.
type ManualReview struct {
	ID        uint         `gorm:"primaryKey"`
	UserID    string       `gorm:"size:64;not null;index"`
	Gateway   string       `gorm:"size:32;not null"`
	PlanKind  PlanKind     `gorm:"size:16"`
	ProofKind ProofKind    `gorm:"size:16;not null"`
	Proof     string       `gorm:"size:1024;not null"`
	Status    ReviewStatus `gorm:"size:16;not null;default:'pending';index"`
	CreatedAt time.Time
	DecidedAt *time.Time
}
