package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const minSigningKeyLen = 32

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	StoreBackend   string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema       string        `mapstructure:"DB_SCHEMA"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	TLSEnabled     bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string        `mapstructure:"TLS_KEY_FILE"`

	// Logging
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `mapstructure:"LOG_MAX_AGE_DAYS"`

	// Event sinks. Each is off while its address is empty.
	EventsRedisAddr     string   `mapstructure:"EVENTS_REDIS_ADDR"`
	EventsRedisPassword string   `mapstructure:"EVENTS_REDIS_PASSWORD"`
	EventsRedisDB       int      `mapstructure:"EVENTS_REDIS_DB"`
	EventsRedisChannel  string   `mapstructure:"EVENTS_REDIS_CHANNEL"`
	EventsKafkaBrokers  []string `mapstructure:"EVENTS_KAFKA_BROKERS"`
	EventsKafkaTopic    string   `mapstructure:"EVENTS_KAFKA_TOPIC"`

	// Ward monitor ingest. Off while MQTT_BROKER is empty.
	MQTTBroker      string `mapstructure:"MQTT_BROKER"`
	MQTTClientID    string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTVitalsTopic string `mapstructure:"MQTT_VITALS_TOPIC"`
	MQTTUsername    string `mapstructure:"MQTT_USERNAME"`
	MQTTPassword    string `mapstructure:"MQTT_PASSWORD"`
}

var defaults = map[string]interface{}{
	"PORT":                 "8000",
	"ENV":                  "development",
	"STORE_BACKEND":        StoreMemory,
	"DB_MAX_CONNS":         20,
	"DB_MIN_CONNS":         5,
	"DB_SCHEMA":            "public",
	"CORS_ORIGINS":         "http://localhost:3000",
	"RATE_LIMIT_RPS":       100,
	"RATE_LIMIT_BURST":     200,
	"REQUEST_TIMEOUT":      "30s",
	"LOG_LEVEL":            "info",
	"LOG_MAX_SIZE_MB":      100,
	"LOG_MAX_BACKUPS":      5,
	"LOG_MAX_AGE_DAYS":     30,
	"EVENTS_REDIS_CHANNEL": "triage-events",
	"EVENTS_KAFKA_TOPIC":   "triage-alerts",
	"MQTT_CLIENT_ID":       "triage-server",
	"MQTT_VITALS_TOPIC":    "ward/+/vitals",
}

var envKeys = []string{
	"DATABASE_URL", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE", "LOG_FILE",
	"EVENTS_REDIS_ADDR", "EVENTS_REDIS_PASSWORD", "EVENTS_REDIS_DB", "EVENTS_KAFKA_BROKERS",
	"MQTT_BROKER", "MQTT_USERNAME", "MQTT_PASSWORD",
}

// Load reads an optional .env file and the environment. It does not
// validate; call Validate before serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Bind env vars explicitly so Unmarshal picks them up
	for key, val := range defaults {
		v.SetDefault(key, val)
		v.BindEnv(key)
	}
	for _, key := range envKeys {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.EventsKafkaBrokers = splitList(v.GetString("EVENTS_KAFKA_BROKERS"))
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate rejects configurations that are unsafe or cannot start.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", StorePostgres)
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) must satisfy 0 <= min <= max, max > 0", c.DBMinConns, c.DBMaxConns)
		}
		if c.DBSchema == "" {
			return fmt.Errorf("DB_SCHEMA must not be empty")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreBackend)
	}

	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required outside development (ENV=%q)", c.Env)
		}
		if len(c.AuthSigningKey) < minSigningKeyLen {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.AuthSigningKey))
		}
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if len(c.EventsKafkaBrokers) > 0 && c.EventsKafkaTopic == "" {
		return fmt.Errorf("EVENTS_KAFKA_TOPIC is required when EVENTS_KAFKA_BROKERS is set")
	}
	if c.EventsRedisAddr != "" && c.EventsRedisChannel == "" {
		return fmt.Errorf("EVENTS_REDIS_CHANNEL is required when EVENTS_REDIS_ADDR is set")
	}
	if c.MQTTBroker != "" && (c.MQTTClientID == "" || c.MQTTVitalsTopic == "") {
		return fmt.Errorf("MQTT_CLIENT_ID and MQTT_VITALS_TOPIC are required when MQTT_BROKER is set")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	return nil
}
