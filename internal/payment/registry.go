package payment

import (
	"fmt"

	"go.uber.org/zap"

	"premium-bot/internal/config"
)

// Registry looks gateways up by name. Only gateways whose credentials are
// configured are registered.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	if _, exists := r.adapters[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return a, nil
}

// Names returns registered gateways in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) StatusChecker(name string) (StatusChecker, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	sc, ok := a.(StatusChecker)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no status check", ErrGatewayDisabled, name)
	}
	return sc, nil
}

func (r *Registry) Confirmer(name string) (InstantConfirmer, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	c, ok := a.(InstantConfirmer)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no in-chat confirmation", ErrGatewayDisabled, name)
	}
	return c, nil
}

// BuildRegistry registers every gateway whose configuration is complete.
// A gateway with broken configuration is skipped and logged, it never stops
// the others.
func BuildRegistry(cfg *config.Config, links LinkLedger, log *zap.Logger) *Registry {
	r := NewRegistry()

	if cfg.StarsEnabled {
		r.Register(NewStarsGateway())
	}
	if cfg.CardProviderToken != "" {
		r.Register(NewCardGateway(cfg.CardProviderToken))
	}
	if cfg.CryptoBotToken != "" {
		r.Register(NewCryptoBotGateway(cfg.CryptoBotToken, cfg.PendingTTL))
	}
	if cfg.CryptomusEnabled() {
		r.Register(NewCryptomusGateway(cfg.CryptomusMerchant, cfg.CryptomusAPIKey, cfg.PendingTTL))
	}
	if cfg.YookassaEnabled() {
		prices, err := YookassaPrices(cfg.YookassaPriceWeek, cfg.YookassaPriceMonth)
		if err != nil {
			log.Warn("yookassa disabled: bad price", zap.Error(err))
		} else {
			r.Register(NewYookassaGateway(NewYookassaClient(cfg.YookassaShopID, cfg.YookassaKey), prices, cfg.YookassaReturnURL))
		}
	}
	if cfg.PaypalMeURL != "" {
		g, err := NewLinkGateway(cfg.PaypalMeURL, cfg.ManualLinkDomains, links)
		if err != nil {
			log.Warn("paypal disabled", zap.Error(err))
		} else {
			r.Register(g)
		}
	}
	if cfg.ScreenshotEnabled {
		r.Register(NewScreenshotGateway())
	}

	log.Info("payment gateways registered", zap.Strings("gateways", r.Names()))
	return r
}
