package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"premium-bot/internal/config"
)

func TestBuildRegistryOnlyRegistersConfiguredGateways(t *testing.T) {
	cfg := &config.Config{
		StarsEnabled:       true,
		CryptoBotToken:     "token",
		CryptomusMerchant:  "merchant",
		YookassaShopID:     "shop",
		YookassaKey:        "key",
		YookassaPriceWeek:  "99.00",
		YookassaPriceMonth: "oops",
		PaypalMeURL:        "https://paypal.me/shop",
		ScreenshotEnabled:  false,
	}

	r := BuildRegistry(cfg, ledgerStub{}, zap.NewNop())
	assert.Equal(t, []string{"stars", "cryptobot", "paypal"}, r.Names())

	_, err := r.Get("cryptomus")
	assert.ErrorIs(t, err, ErrUnknownGateway)

	_, err = r.StatusChecker("cryptobot")
	require.NoError(t, err)
	_, err = r.StatusChecker("stars")
	assert.ErrorIs(t, err, ErrGatewayDisabled)

	_, err = r.Confirmer("stars")
	require.NoError(t, err)
	_, err = r.Confirmer("paypal")
	assert.ErrorIs(t, err, ErrGatewayDisabled)
}
