package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// envPrefix общий префикс переменных окружения сервиса.
const envPrefix = "STOREFRONT_"

// Config описывает настройки запуска приложения.
// Структура остаётся сравнимой: в ней нет слайсов и map.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr пустой отключает кеш товаров.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// KafkaBrokers список брокеров через запятую. Пустой включает логирующий publisher.
	KafkaBrokers      string
	KafkaClientID     string
	KafkaCatalogGroup string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxRetention    time.Duration

	CleanupInterval  time.Duration
	CleanupBatchSize int
	IdempotencyTTL   time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CacheTTL:            5 * time.Minute,
		KafkaClientID:       "storefront",
		KafkaCatalogGroup:   "storefront-cache-invalidator",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   5,
		OutboxRetryDelay:    200 * time.Millisecond,
		OutboxRetention:     72 * time.Hour,
		CleanupInterval:     10 * time.Minute,
		CleanupBatchSize:    500,
		IdempotencyTTL:      24 * time.Hour,
		RequestTimeout:      15 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
	}
}

// Validate проверяет согласованность настроек до старта компонентов.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.OutboxBatchSize <= 0 || c.CleanupBatchSize <= 0 {
		return errors.New("batch sizes must be positive")
	}
	if c.OutboxPollInterval <= 0 || c.CleanupInterval <= 0 {
		return errors.New("worker intervals must be positive")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// LoadConfig читает .env (если файл есть) и переопределяет значения по умолчанию переменными STOREFRONT_*.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv применяет переменные окружения поверх DefaultConfig.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	p := envParser{lookup: lookup}

	p.str("HTTP_ADDR", &cfg.HTTPAddr)
	p.str("GRPC_ADDR", &cfg.GRPCAddr)
	p.str("METRICS_ADDR", &cfg.MetricsAddr)

	var driver string
	if p.str("STORAGE_DRIVER", &driver) {
		cfg.StorageDriver = StorageDriver(strings.ToLower(driver))
	}
	p.str("POSTGRES_DSN", &cfg.PostgresDSN)
	p.boolean("POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)

	p.str("REDIS_ADDR", &cfg.RedisAddr)
	p.str("REDIS_PASSWORD", &cfg.RedisPassword)
	p.integer("REDIS_DB", &cfg.RedisDB)
	p.duration("CACHE_TTL", &cfg.CacheTTL)

	p.str("KAFKA_BROKERS", &cfg.KafkaBrokers)
	p.str("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	p.str("KAFKA_CATALOG_GROUP", &cfg.KafkaCatalogGroup)

	p.duration("OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	p.integer("OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	p.integer("OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	p.duration("OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	p.duration("OUTBOX_RETENTION", &cfg.OutboxRetention)

	p.duration("CLEANUP_INTERVAL", &cfg.CleanupInterval)
	p.integer("CLEANUP_BATCH_SIZE", &cfg.CleanupBatchSize)
	p.duration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)

	p.duration("REQUEST_TIMEOUT", &cfg.RequestTimeout)
	p.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	p.str("LOG_LEVEL", &cfg.LogLevel)

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

// envParser собирает ошибки разбора, чтобы сообщить обо всех сразу.
type envParser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *envParser) raw(name string) (string, bool) {
	v, ok := p.lookup(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *envParser) str(name string, dst *string) bool {
	v, ok := p.raw(name)
	if ok {
		*dst = v
	}
	return ok
}

func (p *envParser) integer(name string, dst *int) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = n
}

func (p *envParser) boolean(name string, dst *bool) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = b
}

func (p *envParser) duration(name string, dst *time.Duration) {
	v, ok := p.raw(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
		return
	}
	*dst = d
}

// brokerList разбивает KafkaBrokers, отбрасывая пустые элементы.
func (c Config) brokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
