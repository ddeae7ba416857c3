package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/UkralStul/blog-service/internal/cache"
	"github.com/UkralStul/blog-service/internal/events"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/media"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      cache.Config
	Pagination PaginationConfig
	Media      media.Config
	Auth       AuthConfig
	Events     events.Config
	Log        logging.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // in-memory, gorm
	SeedData bool   `mapstructure:"seed_data"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN             string `mapstructure:"dsn"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string        `mapstructure:"file_path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PaginationConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	LoginURL string `mapstructure:"login_url"`
}

// Load reads ./config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config", "config")
}

// LoadFrom reads configName.yaml from configPath when it exists, applies
// defaults and binds environment variables.
func LoadFrom(configPath, configName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Events reuse the shared redis connection unless configured separately.
	if cfg.Events.Redis.Address == "" {
		cfg.Events.Redis.Address = cfg.Redis.Address
		cfg.Events.Redis.Password = cfg.Redis.Password
		cfg.Events.Redis.DB = cfg.Redis.DB
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.driver", "in-memory")
	v.SetDefault("storage.seed_data", true)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "blog")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/blog.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.prefix", "blog:cache")
	v.SetDefault("pagination.page_size", 10)
	v.SetDefault("media.backend", "local")
	v.SetDefault("media.url_expiry", "1h")
	v.SetDefault("media.local.base_path", "./media")
	v.SetDefault("media.local.url_prefix", "/media/")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("auth.issuer", "blog")
	v.SetDefault("auth.login_url", "/auth/login/")
	v.SetDefault("events.driver", "none")
	v.SetDefault("events.redis.channel_prefix", "blog")
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.topic", "blog-events")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "blog-service")
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.port":                "PORT",
		"storage.driver":             "STORAGE_DRIVER",
		"storage.seed_data":          "STORAGE_SEED_DATA",
		"database.driver":            "DB_DRIVER",
		"database.dsn":               "DATABASE_URL",
		"database.host":              "DB_HOST",
		"database.port":              "DB_PORT",
		"database.user":              "DB_USER",
		"database.password":          "DB_PASSWORD",
		"database.dbname":            "DB_NAME",
		"database.sslmode":           "DB_SSLMODE",
		"database.file_path":         "DB_FILE_PATH",
		"redis.address":              "REDIS_ADDRESS",
		"redis.password":             "REDIS_PASSWORD",
		"redis.db":                   "REDIS_DB",
		"cache.backend":              "CACHE_BACKEND",
		"cache.ttl":                  "CACHE_TTL",
		"pagination.page_size":       "PAGE_SIZE",
		"media.backend":              "MEDIA_BACKEND",
		"media.local.base_path":      "MEDIA_ROOT",
		"media.local.url_prefix":     "MEDIA_URL",
		"media.s3.endpoint":          "S3_ENDPOINT",
		"media.s3.region":            "S3_REGION",
		"media.s3.bucket":            "S3_BUCKET",
		"media.s3.access_key_id":     "S3_ACCESS_KEY_ID",
		"media.s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
		"media.s3.use_path_style":    "S3_USE_PATH_STYLE",
		"media.s3.public_url":        "S3_PUBLIC_URL",
		"auth.secret":                "AUTH_SECRET",
		"auth.login_url":             "AUTH_LOGIN_URL",
		"events.driver":              "EVENTS_DRIVER",
		"events.kafka.brokers":       "KAFKA_BROKERS",
		"events.kafka.topic":         "KAFKA_TOPIC",
		"log.level":                  "LOG_LEVEL",
		"log.pretty":                 "LOG_PRETTY",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}
