package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const settledKeyTTL = 90 * 24 * time.Hour

// SettlementGuard makes sure one provider settlement reaches the grant path
// at most once.
type SettlementGuard struct {
	rdb *redis.Client
}

func NewSettlementGuard(rdb *redis.Client) *SettlementGuard {
	return &SettlementGuard{rdb: rdb}
}

func settledKey(gateway, reference string) string {
	return fmt.Sprintf("settled:%s:%s", gateway, reference)
}

// Claim reports true for the first caller with this gateway and reference.
func (g *SettlementGuard) Claim(ctx context.Context, gateway, reference string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, settledKey(gateway, reference), time.Now().UTC().Format(time.RFC3339), settledKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim settlement %s/%s: %w", gateway, reference, err)
	}
	return ok, nil
}

// Release undoes a claim whose grant failed so the settlement can be retried.
func (g *SettlementGuard) Release(ctx context.Context, gateway, reference string) error {
	if err := g.rdb.Del(ctx, settledKey(gateway, reference)).Err(); err != nil {
		return fmt.Errorf("release settlement %s/%s: %w", gateway, reference, err)
	}
	return nil
}
