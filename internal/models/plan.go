package models

import (
	"fmt"
	"strings"
	"time"
)

type PlanKind string

const (
	PlanWeek  PlanKind = "week"
	PlanMonth PlanKind = "month"
)

const day = 24 * time.Hour

// Duration is the time a single grant of the plan is worth.
func (p PlanKind) Duration() time.Duration {
	switch p {
	case PlanWeek:
		return 7 * day
	case PlanMonth:
		return 28 * day
	default:
		return 0
	}
}

func (p PlanKind) Valid() bool {
	return p == PlanWeek || p == PlanMonth
}

func (p PlanKind) Title() string {
	switch p {
	case PlanWeek:
		return "1 Week Premium"
	case PlanMonth:
		return "1 Month Premium"
	default:
		return string(p)
	}
}

func ParsePlan(raw string) (PlanKind, error) {
	p := PlanKind(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown plan %q", raw)
	}
	return p, nil
}

func Plans() []PlanKind {
	return []PlanKind{PlanWeek, PlanMonth}
}
