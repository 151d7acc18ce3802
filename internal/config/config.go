package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PolicyFixed = "fixed"
	PolicyElo   = "elo"
)

type Config struct {
	Environment string `json:"environment"`
	LogLevel    string `json:"logLevel"`
	Server      struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	Storage struct {
		Driver string `json:"driver"` // "mongo", "postgres" or "sqlite"
		DSN    string `json:"dsn"`    // used by the SQL drivers
	} `json:"storage"`
	MongoDB struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongodb"`
	Redis struct {
		Addr     string `json:"addr"` // empty disables the Redis rate limiter
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Frontend struct {
		URL string `json:"url"`
	} `json:"frontend"`
	JWT struct {
		AccessSecret string `json:"accessSecret"`
		AccessTTL    int    `json:"accessTtl"` // in minutes
	} `json:"jwt"`
	Matchmaking Matchmaking `json:"matchmaking"`
	RateLimit   struct {
		Requests      int `json:"requests"`
		WindowSeconds int `json:"windowSeconds"`
	} `json:"rateLimit"`
}

// Matchmaking holds the queue and agreement tuning knobs.
type Matchmaking struct {
	RatingThreshold         int    `json:"ratingThreshold"`
	ThresholdStep           int    `json:"thresholdStep"`        // 0 keeps the threshold fixed
	ThresholdStepSeconds    int    `json:"thresholdStepSeconds"` // wait time per step
	MaxThreshold            int    `json:"maxThreshold"`
	AgreementTimeoutSeconds int    `json:"agreementTimeoutSeconds"`
	QueueTimeoutSeconds     int    `json:"queueTimeoutSeconds"`
	SweepIntervalSeconds    int    `json:"sweepIntervalSeconds"`
	RatingPolicy            string `json:"ratingPolicy"` // "fixed" or "elo"
}

func (m Matchmaking) AgreementTimeout() time.Duration {
	return time.Duration(m.AgreementTimeoutSeconds) * time.Second
}

func (m Matchmaking) QueueTimeout() time.Duration {
	return time.Duration(m.QueueTimeoutSeconds) * time.Second
}

func (m Matchmaking) SweepInterval() time.Duration {
	return time.Duration(m.SweepIntervalSeconds) * time.Second
}

func (m Matchmaking) ThresholdStepInterval() time.Duration {
	return time.Duration(m.ThresholdStepSeconds) * time.Second
}

func Load(env string) (*Config, error) {
	// A missing .env is fine; real deployments set the variables directly.
	_ = godotenv.Load()

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		// Default to configs directory relative to working directory
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Replace environment variables in the config
	configStr := expandEnvVars(string(data))

	var cfg Config
	if err := json.Unmarshal([]byte(configStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Environment = env
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMongo
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 60 * 24
	}

	m := &c.Matchmaking
	if m.RatingThreshold == 0 {
		m.RatingThreshold = 50
	}
	if m.MaxThreshold < m.RatingThreshold {
		m.MaxThreshold = m.RatingThreshold
	}
	if m.ThresholdStepSeconds == 0 {
		m.ThresholdStepSeconds = 10
	}
	if m.AgreementTimeoutSeconds == 0 {
		m.AgreementTimeoutSeconds = 60
	}
	if m.QueueTimeoutSeconds == 0 {
		m.QueueTimeoutSeconds = 600
	}
	if m.SweepIntervalSeconds == 0 {
		m.SweepIntervalSeconds = 2
	}
	if m.RatingPolicy == "" {
		m.RatingPolicy = PolicyFixed
	}

	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 30
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMongo:
		if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
			return fmt.Errorf("mongodb.uri and mongodb.database are required for the %q driver", DriverMongo)
		}
	case DriverPostgres, DriverSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %q driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Matchmaking.RatingPolicy {
	case PolicyFixed, PolicyElo:
	default:
		return fmt.Errorf("unknown rating policy %q", c.Matchmaking.RatingPolicy)
	}

	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("jwt.accessSecret is required")
	}
	if c.Matchmaking.RatingThreshold < 0 || c.Matchmaking.ThresholdStep < 0 {
		return fmt.Errorf("matchmaking thresholds must not be negative")
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("SOCCER_ENV")
	if env == "" {
		return "dev"
	}
	return env
}
