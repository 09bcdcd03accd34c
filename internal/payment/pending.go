package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"premium-bot/internal/models"
)

// PendingToken tracks one poll-based purchase until it settles or lapses.
type PendingToken struct {
	Token     string          `json:"token"`
	UserID    string          `json:"user_id"`
	Plan      models.PlanKind `json:"plan"`
	Gateway   string          `json:"gateway"`
	Reference string          `json:"reference"`
	PayURL    string          `json:"pay_url"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func (t PendingToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(now)
}

// PendingStore keeps at most one pending purchase per user in redis.
// The user slot lives for ttl. Token and reference keys live for retention,
// so an invoice that was replaced or lapsed locally still settles if the
// provider reports it paid later on.
type PendingStore struct {
	rdb       *redis.Client
	ttl       time.Duration
	retention time.Duration
}

func NewPendingStore(rdb *redis.Client, ttl, retention time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if retention < ttl {
		retention = ttl
	}
	return &PendingStore{rdb: rdb, ttl: ttl, retention: retention}
}

func (s *PendingStore) TTL() time.Duration {
	return s.ttl
}

func tokenKey(token string) string {
	return "pending:token:" + token
}

func userKey(userID string) string {
	return "pending:user:" + userID
}

func refKey(gateway, reference string) string {
	return "pending:ref:" + gateway + ":" + reference
}

// Save stores tok as the user's only pending purchase and returns the one it
// replaced, if any. The replaced token stays resolvable by token and by
// reference until its retention runs out.
func (s *PendingStore) Save(ctx context.Context, tok PendingToken) (*PendingToken, error) {
	if tok.ExpiresAt.IsZero() {
		tok.ExpiresAt = tok.CreatedAt.Add(s.ttl)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("marshal pending token: %w", err)
	}

	previous, err := s.ForUser(ctx, tok.UserID)
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		return nil, err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(tok.Token), data, s.retention)
		pipe.Set(ctx, userKey(tok.UserID), tok.Token, s.ttl)
		if tok.Reference != "" {
			pipe.Set(ctx, refKey(tok.Gateway, tok.Reference), tok.Token, s.retention)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save pending token: %w", err)
	}
	return previous, nil
}

func (s *PendingStore) Get(ctx context.Context, token string) (*PendingToken, error) {
	data, err := s.rdb.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending token: %w", err)
	}
	var tok PendingToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode pending token: %w", err)
	}
	return &tok, nil
}

func (s *PendingStore) ForUser(ctx context.Context, userID string) (*PendingToken, error) {
	return s.follow(ctx, userKey(userID))
}

func (s *PendingStore) FindByReference(ctx context.Context, gateway, reference string) (*PendingToken, error) {
	return s.follow(ctx, refKey(gateway, reference))
}

func (s *PendingStore) follow(ctx context.Context, key string) (*PendingToken, error) {
	token, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pending token: %w", err)
	}
	return s.Get(ctx, token)
}

// Delete forgets tok. The user index is only cleared while it still points
// at tok, a newer purchase keeps its slot.
func (s *PendingStore) Delete(ctx context.Context, tok PendingToken) error {
	current, err := s.rdb.Get(ctx, userKey(tok.UserID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete pending token: %w", err)
	}

	keys := []string{tokenKey(tok.Token)}
	if tok.Reference != "" {
		keys = append(keys, refKey(tok.Gateway, tok.Reference))
	}
	if current == tok.Token {
		keys = append(keys, userKey(tok.UserID))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete pending token: %w", err)
	}
	return nil
}
