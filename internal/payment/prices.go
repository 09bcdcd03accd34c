package payment

import (
	"fmt"
	"strconv"
	"strings"

	"premium-bot/internal/models"
)

// Price is an amount in minor units of Currency.
type Price struct {
	Amount   int64
	Currency string
}

type PriceList map[models.PlanKind]Price

func (pl PriceList) For(plan models.PlanKind) (Price, error) {
	p, ok := pl[plan]
	if !ok {
		return Price{}, validationError("no price for plan %q", plan)
	}
	return p, nil
}

var (
	StarsPrices = PriceList{
		models.PlanWeek:  {Amount: 46, Currency: "XTR"},
		models.PlanMonth: {Amount: 276, Currency: "XTR"},
	}
	CardPrices = PriceList{
		models.PlanWeek:  {Amount: 100, Currency: "USD"},
		models.PlanMonth: {Amount: 600, Currency: "USD"},
	}
	CryptoPrices = PriceList{
		models.PlanWeek:  {Amount: 100, Currency: "USD"},
		models.PlanMonth: {Amount: 600, Currency: "USD"},
	}
)

// YookassaPrices builds the RUB price list from configured decimal strings.
func YookassaPrices(week, month string) (PriceList, error) {
	w, err := ParseMinor(week)
	if err != nil {
		return nil, fmt.Errorf("week price: %w", err)
	}
	m, err := ParseMinor(month)
	if err != nil {
		return nil, fmt.Errorf("month price: %w", err)
	}
	return PriceList{
		models.PlanWeek:  {Amount: w, Currency: "RUB"},
		models.PlanMonth: {Amount: m, Currency: "RUB"},
	}, nil
}

// ParseMinor converts a decimal string with at most two fractional digits
// ("6", "6.5", "499.00") into minor units.
func ParseMinor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(raw, ".")
	if !digits(whole) || (frac != "" && !digits(frac)) {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if len(frac) > 2 {
		if strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("amount %q has more than two decimals", raw)
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return w*100 + f, nil
}

// digits reports whether s is a non-empty run of ASCII digits. Signs are
// not amounts.
func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatMajor renders minor units as a two-decimal string.
func FormatMajor(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
