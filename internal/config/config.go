package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-omise-storefront/internal/catalog"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string // optional: webhook journal disabled when empty
	RedisAddr    string
	KafkaBrokers []string // optional: webhook events handled inline when empty
	ServiceName  string
	AssetsDir    string
	StaticDir    string

	WebhookGroup   string
	WebhookWorkers int

	OmiseSecretKey  string
	OmisePublicKey  string
	OmiseAPIVersion string
	OmiseAPIURL     string
	AutoCapture     bool
	GatewayTimeout  time.Duration

	SessionSecret string
	SessionTTL    time.Duration

	StoreLocale        string
	StoreCurrency      string
	PreferredURLScheme string
}

// Load reads the environment. Missing gateway keys or session secret are a
// hard error; the process must not start without them.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		ServiceName:  getenv("SERVICE_NAME", "storefront"),
		AssetsDir:    getenv("ASSETS_DIR", "web/assets"),
		StaticDir:    getenv("STATIC_DIR", "web/static"),
		WebhookGroup: getenv("WEBHOOK_GROUP", "storefront-webhooks"),

		OmiseSecretKey:  strings.TrimSpace(os.Getenv("OMISE_SECRET_KEY")),
		OmisePublicKey:  strings.TrimSpace(os.Getenv("OMISE_PUBLIC_KEY")),
		OmiseAPIVersion: strings.TrimSpace(os.Getenv("OMISE_API_VERSION")),
		OmiseAPIURL:     getenv("OMISE_API_URL", "https://api.omise.co"),

		SessionSecret: strings.TrimSpace(os.Getenv("SESSION_SECRET")),

		StoreLocale:        getenv("STORE_LOCALE", "th_TH"),
		StoreCurrency:      strings.ToUpper(getenv("STORE_CURRENCY", "THB")),
		PreferredURLScheme: getenv("PREFERRED_URL_SCHEME", "https"),
	}

	var errs []error
	for k, v := range map[string]string{
		"OMISE_SECRET_KEY":  cfg.OmiseSecretKey,
		"OMISE_PUBLIC_KEY":  cfg.OmisePublicKey,
		"OMISE_API_VERSION": cfg.OmiseAPIVersion,
		"SESSION_SECRET":    cfg.SessionSecret,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", k))
		}
	}

	var err error
	if cfg.AutoCapture, err = parseBool("OMISE_AUTO_CAPTURE", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.GatewayTimeout, err = parseDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = parseDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.WebhookWorkers, err = parseInt("WEBHOOK_WORKERS", 4); err != nil {
		errs = append(errs, err)
	}
	if s := cfg.PreferredURLScheme; s != "http" && s != "https" {
		errs = append(errs, fmt.Errorf("PREFERRED_URL_SCHEME must be http or https, got %q", s))
	}
	if _, err := catalog.NewFormatter(cfg.StoreCurrency, cfg.StoreLocale); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// RequestTimeout bounds one storefront request. A charge with an email makes
// two sequential gateway calls, each bounded by GatewayTimeout.
func (c Config) RequestTimeout() time.Duration {
	return 2*c.GatewayTimeout + 5*time.Second
}

// KafkaEnabled reports whether webhook events go through Kafka.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func parseBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func parseInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	if i <= 0 {
		return def, fmt.Errorf("%s must be positive", k)
	}
	return i, nil
}

func parseDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return def, fmt.Errorf("%s must be positive", k)
	}
	return d, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
