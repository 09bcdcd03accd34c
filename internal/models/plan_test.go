package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDurations(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, PlanWeek.Duration())
	assert.Equal(t, 28*24*time.Hour, PlanMonth.Duration())
	assert.Zero(t, PlanKind("year").Duration())
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan(" Month ")
	require.NoError(t, err)
	assert.Equal(t, PlanMonth, p)

	_, err = ParsePlan("forever")
	require.Error(t, err)
}

func TestEntitlementExpiredAt(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.True(t, (&Entitlement{ExpiresAt: &past}).ExpiredAt(now))
	assert.True(t, (&Entitlement{ExpiresAt: &now}).ExpiredAt(now), "expiry equal to now counts as expired")
	assert.False(t, (&Entitlement{ExpiresAt: &future}).ExpiredAt(now))
	assert.False(t, (&Entitlement{}).ExpiredAt(now), "lifetime grants never expire")
}
