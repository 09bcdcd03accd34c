package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"premium-bot/internal/models"
	"premium-bot/internal/repository"
	"premium-bot/internal/utils"
)

var (
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrConversationClosed   = errors.New("conversation is closed")
	ErrEmptyMessage         = errors.New("empty message")
)

type Conversations interface {
	ActiveForUser(ctx context.Context, userID string) (*models.Conversation, error)
	Create(ctx context.Context, conv *models.Conversation) error
	Get(ctx context.Context, id uint) (*models.Conversation, error)
	Close(ctx context.Context, id uint, at time.Time) (bool, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	SetRelayMessageID(ctx context.Context, messageID uint, relayID int) error
	FindByRelayMessage(ctx context.Context, relayID int) (*models.Conversation, error)
	Messages(ctx context.Context, conversationID uint) ([]models.Message, error)
}

// Notifier moves conversation traffic between the user and the operator.
// RelayToOperator returns the operator-side message id, which is what an
// operator reply points at.
type Notifier interface {
	RelayToOperator(ctx context.Context, conv *models.Conversation, text string) (int, error)
	DeliverToUser(ctx context.Context, userID, text string) error
	NotifyClosed(ctx context.Context, conv *models.Conversation) error
}

type Relay struct {
	convs    Conversations
	notifier Notifier
	locks    *utils.KeyedMutex
	log      *zap.Logger
	now      func() time.Time
}

func NewRelay(convs Conversations, notifier Notifier, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		convs:    convs,
		notifier: notifier,
		locks:    utils.NewKeyedMutex(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open returns the user's active conversation, creating one if none exists.
// created is false when an existing conversation was returned.
func (r *Relay) Open(ctx context.Context, userID string) (conv *models.Conversation, created bool, err error) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	conv, err = r.convs.ActiveForUser(ctx, userID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	conv = &models.Conversation{
		UserID:    userID,
		Status:    models.ConversationActive,
		CreatedAt: r.now(),
	}
	if err := r.convs.Create(ctx, conv); err != nil {
		return nil, false, err
	}
	r.log.Info("support conversation opened", zap.Uint("conversation_id", conv.ID), zap.String("user_id", userID))
	return conv, true, nil
}

// PostUserMessage logs a user message and relays it to the operator.
func (r *Relay) PostUserMessage(ctx context.Context, userID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	conv, err := r.convs.ActiveForUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveConversation
	}
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		FromUser:       true,
		Text:           text,
		Timestamp:      r.now(),
	}
	if err := r.convs.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	relayID, err := r.notifier.RelayToOperator(ctx, conv, text)
	if err != nil {
		return msg, fmt.Errorf("relay to operator: %w", err)
	}
	if err := r.convs.SetRelayMessageID(ctx, msg.ID, relayID); err != nil {
		return msg, err
	}
	msg.RelayMessageID = relayID
	return msg, nil
}

// PostOperatorReply routes an operator reply to the conversation whose
// relayed message it answers.
func (r *Relay) PostOperatorReply(ctx context.Context, replyToMessageID int, text string) (*models.Conversation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if replyToMessageID <= 0 {
		return nil, ErrNoActiveConversation
	}
	conv, err := r.convs.FindByRelayMessage(ctx, replyToMessageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveConversation
	}
	if err != nil {
		return nil, err
	}
	if conv.Status != models.ConversationActive {
		return conv, ErrConversationClosed
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		FromUser:       false,
		Text:           text,
		Timestamp:      r.now(),
	}
	if err := r.convs.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := r.notifier.DeliverToUser(ctx, conv.UserID, text); err != nil {
		return conv, fmt.Errorf("deliver to user: %w", err)
	}
	return conv, nil
}

// Close marks the conversation closed and tells both sides.
func (r *Relay) Close(ctx context.Context, conversationID uint) (*models.Conversation, error) {
	closed, err := r.convs.Close(ctx, conversationID, r.now())
	if err != nil {
		return nil, err
	}
	conv, err := r.convs.Get(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveConversation
	}
	if err != nil {
		return nil, err
	}
	if !closed {
		return conv, ErrConversationClosed
	}

	if err := r.notifier.NotifyClosed(ctx, conv); err != nil {
		r.log.Warn("failed to announce closed conversation", zap.Uint("conversation_id", conv.ID), zap.Error(err))
	}
	r.log.Info("support conversation closed", zap.Uint("conversation_id", conv.ID))
	return conv, nil
}

// CloseForUser closes whatever conversation the user has open.
func (r *Relay) CloseForUser(ctx context.Context, userID string) (*models.Conversation, error) {
	conv, err := r.convs.ActiveForUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveConversation
	}
	if err != nil {
		return nil, err
	}
	return r.Close(ctx, conv.ID)
}

func (r *Relay) Transcript(ctx context.Context, conversationID uint) ([]models.Message, error) {
	return r.convs.Messages(ctx, conversationID)
}
