package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Geo       GeoConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port string
	// EphemeralTTL срок жизни анонимной ссылки в памяти процесса
	EphemeralTTL time.Duration
	// DurableTTL срок жизни постоянной ссылки в хранилище
	DurableTTL time.Duration
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type GeoConfig struct {
	// PrimaryBaseURL базовый URL основного провайдера (ipinfo.io)
	PrimaryBaseURL string
	// BackupBaseURL базовый URL резервного провайдера (ip-api.com)
	BackupBaseURL string
	// LookupTimeout таймаут одного обращения к провайдеру
	LookupTimeout time.Duration
	// CacheSize ёмкость LRU-кэша геолокаций
	CacheSize int
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> ID владельца
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// Сроки жизни ссылок
	cfg.App.EphemeralTTL = viper.GetDuration("EPHEMERAL_TTL")
	if cfg.App.EphemeralTTL == 0 {
		cfg.App.EphemeralTTL = 24 * time.Hour
	}
	cfg.App.DurableTTL = viper.GetDuration("DURABLE_TTL")
	if cfg.App.DurableTTL == 0 {
		cfg.App.DurableTTL = 365 * 24 * time.Hour
	}

	// Geo config
	cfg.Geo.PrimaryBaseURL = viper.GetString("GEO_PRIMARY_URL")
	cfg.Geo.BackupBaseURL = viper.GetString("GEO_BACKUP_URL")
	cfg.Geo.LookupTimeout = viper.GetDuration("GEO_LOOKUP_TIMEOUT")
	if cfg.Geo.LookupTimeout == 0 {
		cfg.Geo.LookupTimeout = 3 * time.Second
	}
	cfg.Geo.CacheSize = viper.GetInt("GEO_CACHE_SIZE")
	if cfg.Geo.CacheSize == 0 {
		cfg.Geo.CacheSize = 10000
	}

	// Auth config - parse API keys from comma-separated string
	// Format: key1:user1,key2:user2
	apiKeysRaw := viper.GetString("API_KEYS")
	cfg.Auth.APIKeys = parseAPIKeys(apiKeysRaw)

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	return &cfg, nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:user1,key2:user2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
