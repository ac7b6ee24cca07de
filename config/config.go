package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"meteostations.app/pkg/errors"
)

// CacheBackend identifies which store keeps cached HTTP responses
type CacheBackend string

const (
	CacheBackendMemory   CacheBackend = "memory"
	CacheBackendRedis    CacheBackend = "redis"
	CacheBackendSQLite   CacheBackend = "sqlite"
	CacheBackendPostgres CacheBackend = "postgres"
)

// Config represents the library configuration structure
type Config struct {
	Cache     CacheConfig     `split_words:"true"`
	Transport TransportConfig `split_words:"true"`
	Geocoder  GeocoderConfig  `split_words:"true"`
	Agrometeo AgrometeoConfig `split_words:"true"`
	Meteocat  MeteocatConfig  `split_words:"true"`
	Aemet     AemetConfig     `split_words:"true"`
	LogLevel  string          `envconfig:"LOG_LEVEL" default:"info"`
}

// CacheConfig selects and tunes the HTTP response cache
type CacheConfig struct {
	Backend       CacheBackend  `envconfig:"CACHE_BACKEND" default:"sqlite"`
	Dir           string        `envconfig:"CACHE_DIR" default:"./cache"`
	PostgresDSN   string        `envconfig:"CACHE_POSTGRES_DSN"`
	CatalogTTL    time.Duration `envconfig:"CACHE_CATALOG_TTL" default:"24h"`
	TimeSeriesTTL time.Duration `envconfig:"CACHE_TIMESERIES_TTL" default:"10m"`
	Redis         RedisConfig   `split_words:"true"`
}

// RedisConfig contains Redis connection settings for the redis cache backend
type RedisConfig struct {
	Addr         string        `envconfig:"CACHE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"CACHE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CACHE_REDIS_DB" default:"0"`
	DialTimeout  time.Duration `envconfig:"CACHE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CACHE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"CACHE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// TransportConfig tunes retries, backoff and rate limiting for outgoing calls
type TransportConfig struct {
	Timeout           time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	MaxRetries        int           `envconfig:"HTTP_MAX_RETRIES" default:"4"`
	BackoffInitial    time.Duration `envconfig:"HTTP_BACKOFF_INITIAL" default:"500ms"`
	BackoffMax        time.Duration `envconfig:"HTTP_BACKOFF_MAX" default:"30s"`
	RequestsPerSecond float64       `envconfig:"HTTP_REQUESTS_PER_SECOND" default:"1"`
	Burst             int           `envconfig:"HTTP_BURST" default:"1"`
}

// GeocoderConfig selects the place-name lookup backend
type GeocoderConfig struct {
	Provider     string `envconfig:"GEOCODER_PROVIDER" default:"nominatim"`
	BaseURL      string `envconfig:"GEOCODER_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent    string `envconfig:"GEOCODER_USER_AGENT" default:"meteostations"`
	GoogleAPIKey string `envconfig:"GEOCODER_GOOGLE_API_KEY"`
}

// AgrometeoConfig contains settings for the Agrometeo network (open access)
type AgrometeoConfig struct {
	BaseURL string `envconfig:"AGROMETEO_BASE_URL" default:"https://agrometeo.ch/backend/api"`
}

// MeteocatConfig contains settings for the Meteocat XEMA network
type MeteocatConfig struct {
	APIKey  string `envconfig:"METEOCAT_API_KEY"`
	BaseURL string `envconfig:"METEOCAT_BASE_URL" default:"https://api.meteo.cat/xema/v1"`
}

// AemetConfig contains settings for the AEMET network
type AemetConfig struct {
	APIKey  string `envconfig:"AEMET_API_KEY"`
	BaseURL string `envconfig:"AEMET_BASE_URL" default:"https://opendata.aemet.es/opendata/api"`
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.NewConfigurationError("error processing config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Geocoder.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks cache configuration
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendSQLite, CacheBackendPostgres:
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("CACHE_BACKEND must be one of memory, redis, sqlite, postgres, got %q", c.Backend), nil)
	}
	if c.Backend == CacheBackendSQLite && c.Dir == "" {
		return errors.NewConfigurationError("CACHE_DIR cannot be empty for the sqlite backend", nil)
	}
	if c.Backend == CacheBackendPostgres && c.PostgresDSN == "" {
		return errors.NewConfigurationError("CACHE_POSTGRES_DSN is required for the postgres backend", nil)
	}
	if c.CatalogTTL <= 0 || c.TimeSeriesTTL <= 0 {
		return errors.NewConfigurationError("cache TTLs must be positive", nil)
	}
	return nil
}

// Validate checks transport configuration
func (t *TransportConfig) Validate() error {
	if t.MaxRetries < 0 {
		return errors.NewConfigurationError("HTTP_MAX_RETRIES cannot be negative", nil)
	}
	if t.BackoffInitial <= 0 || t.BackoffMax < t.BackoffInitial {
		return errors.NewConfigurationError("backoff window must satisfy 0 < initial <= max", nil)
	}
	if t.RequestsPerSecond <= 0 {
		return errors.NewConfigurationError("HTTP_REQUESTS_PER_SECOND must be positive", nil)
	}
	if t.Burst < 1 {
		return errors.NewConfigurationError("HTTP_BURST must be at least 1", nil)
	}
	return nil
}

// Validate checks geocoder configuration
func (g *GeocoderConfig) Validate() error {
	switch g.Provider {
	case "nominatim":
		if g.BaseURL == "" {
			return errors.NewConfigurationError("GEOCODER_BASE_URL cannot be empty", nil)
		}
	case "google":
		if g.GoogleAPIKey == "" {
			return errors.NewConfigurationError("GEOCODER_GOOGLE_API_KEY is required for the google geocoder", nil)
		}
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("GEOCODER_PROVIDER must be nominatim or google, got %q", g.Provider), nil)
	}
	return nil
}
