package models

import (
	"time"
)

type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

type Conversation struct {
	ID        uint               `gorm:"primaryKey"`
	UserID    string             `gorm:"size:64;not null;index"`
	Status    ConversationStatus `gorm:"size:16;not null;index"`
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// Message is one entry of a conversation log. RelayMessageID is the id of
// the copy delivered to the operator chat, used to route operator replies.
type Message struct {
	ID             uint   `gorm:"primaryKey"`
	ConversationID uint   `gorm:"not null;index"`
	FromUser       bool   `gorm:"not null"`
	Text           string `gorm:"type:text;not null"`
	RelayMessageID int    `gorm:"index"`
	Timestamp      time.Time
}
