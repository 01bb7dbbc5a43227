// Package config loads the settings shared by the CLI and the HTTP server.
//
// Values come, in increasing precedence, from built-in defaults, an
// optional YAML file and TISSGUARD_* environment variables, e.g.
// TISSGUARD_STORE_DRIVER=sqlite sets store.driver.
package config

import (
	"time"

	tv "github.com/tissguard/validator"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TISSGUARD_"

// Config is the complete application configuration.
type Config struct {
	Engine EngineConfig `koanf:"engine" json:"engine"`
	Rules  RulesConfig  `koanf:"rules"  json:"rules"`
	Store  StoreConfig  `koanf:"store"  json:"store"`
	Server ServerConfig `koanf:"server" json:"server"`
	Worker WorkerConfig `koanf:"worker" json:"worker"`
	Log    LogConfig    `koanf:"log"    json:"log"`
}

// EngineConfig mirrors tv.Options.
type EngineConfig struct {
	LargeFileThreshold int64  `koanf:"large_file_threshold" json:"largeFileThreshold" validate:"gt=0"`
	WindowSize         int    `koanf:"window_size"          json:"windowSize"         validate:"gt=0"`
	TailSize           int    `koanf:"tail_size"            json:"tailSize"           validate:"gt=0,ltfield=WindowSize"`
	EnvelopeLimit      int    `koanf:"envelope_limit"       json:"envelopeLimit"      validate:"gt=0"`
	FallbackEncoding   string `koanf:"fallback_encoding"    json:"fallbackEncoding"  `
	LookupConcurrency  int    `koanf:"lookup_concurrency"   json:"lookupConcurrency"  validate:"gt=0"`
	Metrics            bool   `koanf:"metrics"              json:"metrics"`
}

// RulesConfig holds the default rule toggles and extra rule files.
type RulesConfig struct {
	CheckFutureDates    bool   `koanf:"check_future_dates"    json:"checkFutureDates"`
	CheckNegativeValues bool   `koanf:"check_negative_values" json:"checkNegativeValues"`
	File                string `koanf:"file"                  json:"file,omitempty"`
}

// StoreConfig selects and configures the TUSS reference table.
type StoreConfig struct {
	Driver        string        `koanf:"driver"         json:"driver"        validate:"oneof=memory sqlite redis"`
	CacheSize     int           `koanf:"cache_size"     json:"cacheSize"     validate:"gte=0"`
	SQLitePath    string        `koanf:"sqlite_path"    json:"sqlitePath"    validate:"required_if=Driver sqlite"`
	SQLiteTimeout time.Duration `koanf:"sqlite_timeout" json:"sqliteTimeout" validate:"gte=0"`
	RedisAddr     string        `koanf:"redis_addr"     json:"redisAddr"     validate:"required_if=Driver redis"`
	RedisPassword string        `koanf:"redis_password" json:"-"`
	RedisDB       int           `koanf:"redis_db"       json:"redisDB"       validate:"gte=0"`
	RedisKey      string        `koanf:"redis_key"      json:"redisKey"`
	Seed          bool          `koanf:"seed"           json:"seed"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `koanf:"addr"             json:"addr"           `
	Mode            string        `koanf:"mode"             json:"mode"            validate:"oneof=debug release test"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"   json:"maxBodyBytes"    validate:"gt=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     json:"readTimeout"     validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdownTimeout" validate:"gte=0"`
}

// WorkerConfig sizes the worker pool. Zero means one worker per CPU.
type WorkerConfig struct {
	Workers int `koanf:"workers" json:"workers" validate:"gte=0"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level  string `koanf:"level"  json:"level"  validate:"oneof=debug info warn error none"`
	Format string `koanf:"format" json:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			LargeFileThreshold: tv.DefaultLargeFileThreshold,
			WindowSize:         tv.DefaultWindowSize,
			TailSize:           tv.DefaultTailSize,
			EnvelopeLimit:      tv.DefaultEnvelopeLimit,
			FallbackEncoding:   tv.DefaultFallbackEncoding,
			LookupConcurrency:  16,
			Metrics:            true,
		},
		Rules: RulesConfig{
			CheckFutureDates:    true,
			CheckNegativeValues: true,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			CacheSize:     4096,
			SQLitePath:    "tuss.db",
			SQLiteTimeout: 5 * time.Second,
			RedisKey:      "tissguard:tuss",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			MaxBodyBytes:    64 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Options converts the engine section into engine options.
func (c *Config) Options() []tv.Option {
	e := c.Engine
	return []tv.Option{
		tv.WithLargeFileThreshold(e.LargeFileThreshold),
		tv.WithWindowSize(e.WindowSize),
		tv.WithTailSize(e.TailSize),
		tv.WithEnvelopeLimit(e.EnvelopeLimit),
		tv.WithFallbackEncoding(e.FallbackEncoding),
		tv.WithLookupConcurrency(e.LookupConcurrency),
		tv.WithMetrics(e.Metrics),
	}
}

// Settings returns the default rule toggles.
func (c *Config) Settings() tv.Settings {
	return tv.Settings{
		tv.SettingCheckFutureDates:    c.Rules.CheckFutureDates,
		tv.SettingCheckNegativeValues: c.Rules.CheckNegativeValues,
	}
}
