package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/upstream/httpclient"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverBadger   = "badger"
	StorageDriverPostgres = "postgres"

	UpstreamModeMock = "mock"
	UpstreamModeHTTP = "http"

	// Уровни вложенности в переменных окружения разделяются "__".
	EnvPrefix = "STOREFRONT_"
	// ConfigPathEnvVar указывает путь к YAML-файлу конфигурации.
	ConfigPathEnvVar  = "STOREFRONT_CONFIG"
	defaultConfigPath = "config.yaml"
)

// Config описывает настройки запуска сервиса витрины.
type Config struct {
	HTTPAddr    string `koanf:"http_addr" validate:"required"`
	GRPCAddr    string `koanf:"grpc_addr" validate:"required"`
	MetricsAddr string `koanf:"metrics_addr" validate:"required"`

	Logging  LoggingConfig  `koanf:"logging"`
	Storage  StorageConfig  `koanf:"storage"`
	Session  SessionConfig  `koanf:"session"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Catalog  catalog.Config `koanf:"catalog"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Cleanup  CleanupConfig  `koanf:"cleanup"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type StorageConfig struct {
	Driver   string         `koanf:"driver" validate:"oneof=memory badger postgres"`
	Badger   BadgerConfig   `koanf:"badger"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type BadgerConfig struct {
	Path string `koanf:"path"`
}

type PostgresConfig struct {
	DSN         string               `koanf:"dsn"`
	AutoMigrate bool                 `koanf:"auto_migrate"`
	Pool        postgres.PoolOptions `koanf:"pool"`
}

type SessionConfig struct {
	// Срок жизни ключей сессионной области.
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`
	// Простой, после которого сессия выселяется из памяти.
	IdleTTL        time.Duration `koanf:"idle_ttl" validate:"gt=0"`
	TokenPrefixLen int           `koanf:"token_prefix_len" validate:"min=1"`
	SecureCookies  bool          `koanf:"secure_cookies"`
}

type UpstreamConfig struct {
	Mode            string            `koanf:"mode" validate:"oneof=mock http"`
	Catalog         httpclient.Config `koanf:"catalog"`
	Recommendations httpclient.Config `koanf:"recommendations"`
	// MockLatency задерживает ответы mock-сервиса рекомендаций.
	MockLatency time.Duration `koanf:"mock_latency" validate:"gte=0"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
}

type CleanupConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"gt=0"`
	BatchSize int           `koanf:"batch_size" validate:"min=1"`
}

// DefaultConfig возвращает настройки локального запуска: память и mock-апстрим.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver: StorageDriverMemory,
			Postgres: PostgresConfig{
				AutoMigrate: true,
			},
		},
		Session: SessionConfig{
			TTL:            30 * time.Minute,
			IdleTTL:        30 * time.Minute,
			TokenPrefixLen: 16,
		},
		Upstream: UpstreamConfig{
			Mode: UpstreamModeMock,
		},
		Catalog: catalog.DefaultConfig(),
		Cleanup: CleanupConfig{
			Interval:  5 * time.Minute,
			BatchSize: 500,
		},
	}
}

// Validate проверяет теги и перекрёстные условия.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Storage.Driver == StorageDriverPostgres && strings.TrimSpace(c.Storage.Postgres.DSN) == "" {
		errs = append(errs, errors.New("storage.postgres.dsn is required for postgres driver"))
	}
	if c.Storage.Driver == StorageDriverBadger && strings.TrimSpace(c.Storage.Badger.Path) == "" {
		errs = append(errs, errors.New("storage.badger.path is required for badger driver"))
	}
	if c.Upstream.Mode == UpstreamModeHTTP {
		if c.Upstream.Catalog.BaseURL == "" {
			errs = append(errs, errors.New("upstream.catalog.base_url is required for http mode"))
		}
		if c.Upstream.Recommendations.BaseURL == "" {
			errs = append(errs, errors.New("upstream.recommendations.base_url is required for http mode"))
		}
	}
	return errors.Join(errs...)
}

// Load собирает конфигурацию слоями: значения по умолчанию, YAML-файл
// (STOREFRONT_CONFIG или ./config.yaml), переменные окружения STOREFRONT_*.
func Load() (Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile загружает конфигурацию из указанного файла; пустой путь пропускает файл.
func LoadFile(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := splitListFields(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// listFields из окружения приходят строкой через запятую.
var listFields = []string{"kafka.brokers"}

func splitListFields(k *koanf.Koanf) error {
	for _, path := range listFields {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		items := make([]string, 0)
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// envKey: STOREFRONT_STORAGE__POSTGRES__DSN -> storage.postgres.dsn.
func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func findConfigFile() string {
	if path := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
