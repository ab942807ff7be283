package config

import (
	"fmt"
	"time"

	"github.com/askhat-b/taxi-dispatch/pkg/configparser"
)

// Config contains all configuration variables of the application
type (
	Config struct {
		ServiceName string `env:"SERVICE_NAME" default:"dispatch"`
		LogLevel    string `env:"LOG_LEVEL" default:"DEBUG"`

		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Redis    RedisConfig
		HTTP     HTTPConfig
		Auth     Auth
		Dispatch DispatchConfig
		Pricing  PricingConfig
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"dispatch_user"`
		Password string `env:"DATABASE_PASSWORD" default:"dispatch_pass"`
		Database string `env:"DATABASE_DATABASE" default:"dispatch_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	RedisConfig struct {
		Addr     string `env:"REDIS_ADDR" default:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		GeoKey   string `env:"REDIS_GEO_KEY" default:"dispatch:drivers:geo"`
	}

	HTTPConfig struct {
		Port string `env:"HTTP_PORT" default:"3000"`
	}

	Auth struct {
		JWTSecret      string        `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
		AccessTokenTTL time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" default:"15m"`
	}

	// DispatchConfig holds the discovery and offer policy. These are
	// external policy values, never hardcoded in the engine.
	DispatchConfig struct {
		Wave1Timeout time.Duration `env:"DISPATCH_WAVE1_TIMEOUT" default:"45s"`
		Wave2Timeout time.Duration `env:"DISPATCH_WAVE2_TIMEOUT" default:"60s"`
		Wave3Timeout time.Duration `env:"DISPATCH_WAVE3_TIMEOUT" default:"90s"`

		Wave1RadiusKm float64 `env:"DISPATCH_WAVE1_RADIUS_KM" default:"2"`
		Wave2RadiusKm float64 `env:"DISPATCH_WAVE2_RADIUS_KM" default:"6"`

		// Wave 3 covers the whole operating region; only a candidate cap applies.
		MaxCandidatesPerWave int `env:"DISPATCH_MAX_CANDIDATES_PER_WAVE" default:"50"`

		HoldTTL time.Duration `env:"DISPATCH_HOLD_TTL" default:"120s"`
	}

	PricingConfig struct {
		// Optional remote pricing endpoint; the local tariff quoter is used
		// when empty.
		RemoteURL string `env:"PRICING_REMOTE_URL"`

		BaseFare   float64 `env:"PRICING_BASE_FARE" default:"500"`
		PerKm      float64 `env:"PRICING_PER_KM" default:"120"`
		PerMin     float64 `env:"PRICING_PER_MIN" default:"35"`
		AvgSpeedKm float64 `env:"PRICING_AVG_SPEED_KMH" default:"30"`

		// Price label thresholds on offerAmount / referenceFare.
		GoodDealMaxRatio float64 `env:"PRICING_GOOD_DEAL_MAX_RATIO" default:"0.90"`
		PricierMinRatio  float64 `env:"PRICING_PRICIER_MIN_RATIO" default:"1.10"`
	}
)

// WaveTimeout returns the configured timeout for the given wave number.
func (c DispatchConfig) WaveTimeout(wave int) time.Duration {
	switch wave {
	case 1:
		return c.Wave1Timeout
	case 2:
		return c.Wave2Timeout
	default:
		return c.Wave3Timeout
	}
}

// WaveRadiusKm returns the candidate radius for the given wave.
// A non-positive value means the whole operating region (wave 3).
func (c DispatchConfig) WaveRadiusKm(wave int) float64 {
	switch wave {
	case 1:
		return c.Wave1RadiusKm
	case 2:
		return c.Wave2RadiusKm
	default:
		return 0
	}
}

func (c DatabaseConfig) PoolLimits() (int32, int32) {
	return c.MaxConns, c.MinConns
}

func (c DatabaseConfig) ConnLifetimes() (time.Duration, time.Duration) {
	return c.MaxConnLifetime, c.MaxConnIdleTime
}

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}
