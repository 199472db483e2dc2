package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// StorageDriverMemory хранит заказы в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит заказы в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

const (
	envHTTPAddr            = "ORDERS_HTTP_ADDR"
	envGRPCAddr            = "ORDERS_GRPC_ADDR"
	envMetricsAddr         = "ORDERS_METRICS_ADDR"
	envStorageDriver       = "ORDERS_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERS_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERS_POSTGRES_AUTO_MIGRATE"
	envMaterialServiceURL  = "ORDERS_MATERIAL_SERVICE_URL"
	envMaterialCacheTTL    = "ORDERS_MATERIAL_CACHE_TTL"
	envExternalTimeout     = "ORDERS_EXTERNAL_TIMEOUT"
	envBatchTimeout        = "ORDERS_BATCH_TIMEOUT"
	envBatchMaxItems       = "ORDERS_BATCH_MAX_ITEMS"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envOutboxTopic         = "ORDERS_OUTBOX_TOPIC"
	envOutboxPollInterval  = "ORDERS_OUTBOX_POLL_INTERVAL"
)

// Config настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	MaterialServiceURL string
	MaterialCacheTTL   time.Duration
	ExternalTimeout    time.Duration

	BatchTimeout  time.Duration
	BatchMaxItems int

	KafkaBrokers       []string
	OutboxTopic        string
	OutboxPollInterval time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		MaterialCacheTTL:    24 * time.Hour,
		ExternalTimeout:     5 * time.Second,
		BatchTimeout:        30 * time.Second,
		BatchMaxItems:       100,
		OutboxTopic:         "orders.order.events",
		OutboxPollInterval:  time.Second,
	}
}

// LookupFunc источник переменных окружения.
type LookupFunc func(key string) (string, bool)

// LoadConfigFromEnv подгружает .env (если есть) и читает конфигурацию из окружения процесса.
func LoadConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadConfig(os.LookupEnv)
}

// LoadConfig применяет переменные окружения поверх DefaultConfig.
func LoadConfig(lookup LookupFunc) (Config, error) {
	cfg := DefaultConfig()
	r := envReader{lookup: lookup}

	r.str(envHTTPAddr, &cfg.HTTPAddr)
	r.str(envGRPCAddr, &cfg.GRPCAddr)
	r.str(envMetricsAddr, &cfg.MetricsAddr)
	r.str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	r.str(envPostgresDSN, &cfg.PostgresDSN)
	r.boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	r.str(envMaterialServiceURL, &cfg.MaterialServiceURL)
	r.duration(envMaterialCacheTTL, &cfg.MaterialCacheTTL)
	r.duration(envExternalTimeout, &cfg.ExternalTimeout)
	r.duration(envBatchTimeout, &cfg.BatchTimeout)
	r.integer(envBatchMaxItems, &cfg.BatchMaxItems)
	r.str(envOutboxTopic, &cfg.OutboxTopic)
	r.duration(envOutboxPollInterval, &cfg.OutboxPollInterval)

	var brokers string
	r.str(envKafkaBrokers, &brokers)
	cfg.KafkaBrokers = splitBrokers(brokers)

	if r.err != nil {
		return Config{}, r.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("%s is required for %s storage", envPostgresDSN, StorageDriverPostgres))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.BatchMaxItems <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envBatchMaxItems))
	}
	if c.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envBatchTimeout))
	}
	if c.MaterialCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envMaterialCacheTTL))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envOutboxPollInterval))
	}
	return errors.Join(errs...)
}

// KafkaEnabled сообщает, настроена ли публикация событий.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

type envReader struct {
	lookup LookupFunc
	err    error
}

func (r *envReader) raw(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) fail(key, value string, err error) {
	r.err = errors.Join(r.err, fmt.Errorf("invalid %s=%q: %w", key, value, err))
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.raw(key); ok {
		*dst = v
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = d
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = n
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		r.fail(key, v, errors.New("expected boolean"))
	}
}

func splitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
