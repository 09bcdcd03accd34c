package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"premium-bot/internal/models"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) ActiveForUser(ctx context.Context, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ConversationActive).
		Order("created_at DESC, id DESC").
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.Status == "" {
		conv.Status = models.ConversationActive
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) Close(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND status = ?", id, models.ConversationActive).
		Updates(map[string]any{"status": models.ConversationClosed, "closed_at": at.UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("close conversation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *ConversationRepository) SetRelayMessageID(ctx context.Context, messageID uint, relayID int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("relay_message_id", relayID).Error
	if err != nil {
		return fmt.Errorf("set relay message id: %w", err)
	}
	return nil
}

// FindByRelayMessage resolves an operator-side message id to its conversation.
func (r *ConversationRepository) FindByRelayMessage(ctx context.Context, relayID int) (*models.Conversation, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Where("relay_message_id = ?", relayID).First(&msg).Error; err != nil {
		return nil, translate(err)
	}
	return r.Get(ctx, msg.ConversationID)
}

func (r *ConversationRepository) Messages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
