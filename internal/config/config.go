package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser        string
	DBPassword    string
	DBName        string
	DBHost        string
	DBPort        string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	BotToken   string
	AdminID    int64
	ChannelURL string
	LogLevel   string
	HTTPAddr   string

	StarsEnabled      bool
	CardProviderToken string

	CryptoBotToken     string
	CryptomusMerchant  string
	CryptomusAPIKey    string
	YookassaShopID     string
	YookassaKey        string
	YookassaReturnURL  string
	YookassaPriceWeek  string
	YookassaPriceMonth string
	AllowedYooIp       []string
	TrustedProxies     []string

	PaypalMeURL       string
	ManualLinkDomains []string
	ScreenshotEnabled bool

	SweepInterval    time.Duration
	PendingTTL       time.Duration
	PendingRetention time.Duration
}

var (
	ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrMissingAdminID  = errors.New("ADMIN_USER_ID is required")
)

var defaultYooCIDRs = []string{
	"185.71.76.0/27",
	"185.71.77.0/27",
	"77.75.153.0/25",
	"77.75.156.11/32",
	"77.75.156.35/32",
	"77.75.154.128/25",
	"2a02:5180::/32",
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "premium_bot"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		BotToken:   getEnv("TELEGRAM_BOT_TOKEN", getEnv("BOT_TOKEN", "")),
		AdminID:    getEnvInt64("ADMIN_USER_ID", 0),
		ChannelURL: getEnv("CHANNEL_URL", "https://t.me/nekozuX"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),

		StarsEnabled:      getEnvBool("STARS_ENABLED", true),
		CardProviderToken: getEnv("PAYMENT_PROVIDER_KEY", ""),

		CryptoBotToken:     getEnv("CRYPTOBOT_TOKEN", ""),
		CryptomusMerchant:  getEnv("CRYPTOMUS_MERCHANT_ID", ""),
		CryptomusAPIKey:    getEnv("CRYPTOMUS_API_KEY", ""),
		YookassaShopID:     getEnv("YOOKASSA_SHOP_ID", ""),
		YookassaKey:        getEnv("YOOKASSA_SECRET_KEY", ""),
		YookassaReturnURL:  getEnv("YOOKASSA_RETURN_URL", "https://t.me"),
		YookassaPriceWeek:  getEnv("YOOKASSA_PRICE_WEEK", "99.00"),
		YookassaPriceMonth: getEnv("YOOKASSA_PRICE_MONTH", "499.00"),
		AllowedYooIp:       getEnvList("YOOKASSA_TRUSTED_CIDRS", defaultYooCIDRs),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),

		PaypalMeURL:       getEnv("PAYPAL_ME_URL", ""),
		ManualLinkDomains: getEnvList("MANUAL_LINK_DOMAINS", nil),
		ScreenshotEnabled: getEnvBool("SCREENSHOT_PAYMENT_ENABLED", true),

		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 24*time.Hour),
		PendingTTL:       getEnvDuration("PENDING_TTL", time.Hour),
		PendingRetention: getEnvDuration("PENDING_RETENTION", 72*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate only rejects what the whole process cannot run without.
// Gateway credentials are optional: a missing one disables that gateway.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return ErrMissingBotToken
	}
	if c.AdminID == 0 {
		return ErrMissingAdminID
	}
	return nil
}

func (c *Config) CryptomusEnabled() bool {
	return c.CryptomusMerchant != "" && c.CryptomusAPIKey != ""
}

func (c *Config) YookassaEnabled() bool {
	return c.YookassaShopID != "" && c.YookassaKey != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
