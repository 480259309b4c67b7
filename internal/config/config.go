package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Port        int    `toml:"port"`
	FrontendURL string `toml:"frontend_url"`
	StoreDriver string `toml:"store_driver"`
	MaxConns    int    `toml:"max_conns"`
	LogLevel    string `toml:"log_level"`

	DBHost     string `toml:"db_host"`
	DBPort     int    `toml:"db_port"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	DBName     string `toml:"db_name"`
	DBSSLMode  string `toml:"db_sslmode"`

	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`

	// AuthSecret enables the bearer token guard on /api routes when set.
	AuthSecret string `toml:"auth_secret"`
}

func Defaults() *Config {
	return &Config{
		Port:          5000,
		FrontendURL:   "http://localhost:5173",
		StoreDriver:   DriverPostgres,
		LogLevel:      "info",
		DBHost:        "localhost",
		DBPort:        5432,
		DBSSLMode:     "disable",
		MongoURI:      "mongodb://localhost:27017",
		MongoDatabase: "todos",
	}
}

// Load layers defaults, the optional TOML file at path, and the environment,
// in that order.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envString(&cfg.FrontendURL, "FRONTEND_URL")
	envString(&cfg.StoreDriver, "STORE_DRIVER")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.DBHost, "DB_HOST")
	envString(&cfg.DBUser, "DB_USER")
	envString(&cfg.DBPassword, "DB_PASSWORD")
	envString(&cfg.DBName, "DB_NAME")
	envString(&cfg.DBSSLMode, "DB_SSLMODE")
	envString(&cfg.MongoURI, "MONGO_URI")
	envString(&cfg.MongoDatabase, "MONGO_DATABASE")
	envString(&cfg.AuthSecret, "AUTH_SECRET")

	return errors.Join(
		envInt(&cfg.Port, "PORT"),
		envInt(&cfg.DBPort, "DB_PORT"),
		envInt(&cfg.MaxConns, "MAX_CONNS"),
	)
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, v)
	}
	*dst = n
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max_conns must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}
