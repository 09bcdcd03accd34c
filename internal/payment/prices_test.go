package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-bot/internal/models"
)

func TestParseMinor(t *testing.T) {
	for raw, want := range map[string]int64{
		"6":      600,
		"1.5":    150,
		"499.00": 49900,
		"0.99":   99,
		"6.000":  600,
	} {
		got, err := ParseMinor(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "abc", "-1", "-0.50", "+5", "1.-5", "1.+5", ".50", "1.005", "1.2.3"} {
		_, err := ParseMinor(raw)
		assert.Error(t, err, raw)
	}
}

func TestFormatMajor(t *testing.T) {
	assert.Equal(t, "6.00", FormatMajor(600))
	assert.Equal(t, "0.99", FormatMajor(99))
	assert.Equal(t, "499.00", FormatMajor(49900))
}

func TestYookassaPrices(t *testing.T) {
	prices, err := YookassaPrices("99.00", "499")
	require.NoError(t, err)
	assert.Equal(t, Price{Amount: 9900, Currency: "RUB"}, prices[models.PlanWeek])
	assert.Equal(t, Price{Amount: 49900, Currency: "RUB"}, prices[models.PlanMonth])

	_, err = YookassaPrices("cheap", "499")
	assert.Error(t, err)
}
