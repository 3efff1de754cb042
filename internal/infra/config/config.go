package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	GatewaySandbox = "sandbox"
	GatewayChapa   = "chapa"
)

// Config aggregates application configuration. Values come from the
// environment, optionally layered over a YAML file named by CONFIG_FILE.
type Config struct {
	Env      string
	HTTPAddr string

	StorageDriver string
	MongoURI      string
	MongoDB       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string
	KafkaVerifyTopic string

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	Currency           string
	GatewayMode        string
	ChapaBaseURL       string
	ChapaSecretKey     string
	ChapaWebhookSecret string
	PaymentCallbackURL string
	PaymentReturnURL   string
	PaymentTitle       string
	GatewayTimeout     time.Duration

	ReconcileInterval time.Duration
	ReconcileMinAge   time.Duration
	ReconcileBatch    int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

var defaults = map[string]any{
	"APP_ENV":              "dev",
	"HTTP_ADDR":            ":8080",
	"STORAGE_DRIVER":       StorageMemory,
	"MONGO_DB":             "staypay",
	"REDIS_DB":             0,
	"LOCK_TTL":             "30s",
	"KAFKA_GROUP_ID":       "staypay",
	"KAFKA_VERIFY_TOPIC":   "payments.verify.v1",
	"IDEMP_TTL":            "168h",
	"OUTBOX_POLL_INTERVAL": "500ms",
	"RETRY_BACKOFF":        "1s,5s,30s",
	"CURRENCY":             "ETB",
	"GATEWAY_MODE":         GatewaySandbox,
	"CHAPA_BASE_URL":       "https://api.chapa.co",
	"PAYMENT_CALLBACK_URL": "http://localhost:8080/payment/verify",
	"PAYMENT_RETURN_URL":   "http://localhost:8080/",
	"PAYMENT_TITLE":        "StayPay booking",
	"GATEWAY_TIMEOUT":      "10s",
	"RECONCILE_INTERVAL":   "1m",
	"RECONCILE_MIN_AGE":    "15m",
	"RECONCILE_BATCH":      50,
	"S3_BUCKET":            "staypay-receipts",
	"S3_USE_SSL":           false,
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:                strings.ToLower(v.GetString("APP_ENV")),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		StorageDriver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDB:            v.GetString("MONGO_DB"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix:   v.GetString("KAFKA_TOPIC_PREFIX"),
		KafkaGroupID:       v.GetString("KAFKA_GROUP_ID"),
		KafkaVerifyTopic:   v.GetString("KAFKA_VERIFY_TOPIC"),
		Currency:           strings.ToUpper(strings.TrimSpace(v.GetString("CURRENCY"))),
		GatewayMode:        strings.ToLower(v.GetString("GATEWAY_MODE")),
		ChapaBaseURL:       v.GetString("CHAPA_BASE_URL"),
		ChapaSecretKey:     v.GetString("CHAPA_SECRET_KEY"),
		ChapaWebhookSecret: v.GetString("CHAPA_WEBHOOK_SECRET"),
		PaymentCallbackURL: v.GetString("PAYMENT_CALLBACK_URL"),
		PaymentReturnURL:   v.GetString("PAYMENT_RETURN_URL"),
		PaymentTitle:       v.GetString("PAYMENT_TITLE"),
		ReconcileBatch:     v.GetInt("RECONCILE_BATCH"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		S3AccessKey:        v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:        v.GetString("S3_SECRET_KEY"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3UseSSL:           v.GetBool("S3_USE_SSL"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LOCK_TTL", &cfg.LockTTL},
		{"IDEMP_TTL", &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval},
		{"GATEWAY_TIMEOUT", &cfg.GatewayTimeout},
		{"RECONCILE_INTERVAL", &cfg.ReconcileInterval},
		{"RECONCILE_MIN_AGE", &cfg.ReconcileMinAge},
	}
	for _, d := range durations {
		parsed, err := parseDuration(d.key, v.GetString(d.key))
		if err != nil {
			return Config{}, err
		}
		*d.dst = parsed
	}

	for _, raw := range splitList(v.GetString("RETRY_BACKOFF")) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORAGE_DRIVER=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	switch c.GatewayMode {
	case GatewaySandbox:
	case GatewayChapa:
		if c.ChapaSecretKey == "" {
			errs = append(errs, errors.New("CHAPA_SECRET_KEY is required when GATEWAY_MODE=chapa"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GATEWAY_MODE %q", c.GatewayMode))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY must be a 3-letter code, got %q", c.Currency))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
