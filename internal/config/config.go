// Package config handles loading and parsing application configuration.
// It supports two sources (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// Every value read from the YAML file can be overridden by the matching
// environment variable.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap/zapcore"
)

// Environment names.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Storage drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the root configuration structure.
//
// env-required:"true" means the app refuses to start if that value is
// missing.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// LogLevel overrides the level implied by Env ("debug", "info", ...).
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	Storage    Storage    `yaml:"storage"`
	HTTPServer HTTPServer `yaml:"http_server"`
}

// Storage selects and configures the document store.
type Storage struct {
	// Driver is "mongo" or "sqlite".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`

	// Path is the filesystem path to the SQLite .db file.
	Path string `yaml:"path" env:"STORAGE_PATH" env-default:"storage/students.db"`

	Mongo Mongo `yaml:"mongo"`
}

// Mongo holds MongoDB connection settings.
type Mongo struct {
	URI        string        `yaml:"uri"        env:"MONGO_URI"        env-default:"mongodb://127.0.0.1:27017"`
	Database   string        `yaml:"database"   env:"MONGO_DATABASE"   env-default:"exampleDB"`
	Collection string        `yaml:"collection" env:"MONGO_COLLECTION" env-default:"students"`
	Timeout    time.Duration `yaml:"timeout"    env:"MONGO_TIMEOUT"    env-default:"10s"`
}

// HTTPServer holds settings specific to the HTTP server.
// Nested under http_server: in the YAML file.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:3000".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`

	// CORSOrigins lists the origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" env:"HTTP_SERVER_CORS_ORIGINS" env-default:"*"`

	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HTTP_SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HTTP_SERVER_WRITE_TIMEOUT"    env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"HTTP_SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SERVER_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// MustLoad reads, validates, and returns the application config.
// It exits the process if the config cannot be loaded.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}

	return cfg
}

// Load reads the config file at path, applies environment overrides and
// checks the result.
func Load(path string) (*Config, error) {
	// Verify the file exists before trying to read it, for a clearer
	// message than "open: no such file".
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) check() error {
	switch c.Env {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("unknown env %q: want dev, staging or prod", c.Env)
	}

	switch c.Storage.Driver {
	case DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q: want mongo or sqlite", c.Storage.Driver)
	}

	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
		}
	}

	return nil
}
