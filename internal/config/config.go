package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		AllowedOrigins []string
	}
	Database struct {
		Path string
	}
	Session struct {
		Backend       string
		Timezone      string
		CookieName    string
		SecureCookie  bool
		SweepInterval time.Duration
	}
	Auth struct {
		JWTSecret string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables, an optional .env file and
// an optional config file in the working directory.
func Load() (Config, error) {
	// existing environment variables win over .env
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COURIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.allowedorigins", []string{})
	v.SetDefault("database.path", "data/courier.db")
	v.SetDefault("session.backend", SessionBackendSQLite)
	v.SetDefault("session.timezone", "Local")
	v.SetDefault("session.cookiename", "courier_session")
	v.SetDefault("session.securecookie", false)
	v.SetDefault("session.sweepinterval", "10m")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "courier-exports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Session.Backend {
	case SessionBackendSQLite, SessionBackendRedis, SessionBackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return fmt.Errorf("session cookie name is required")
	}
	return nil
}

// Location resolves the time zone sessions use for "end of day".
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Session.Timezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load session timezone %q: %w", name, err)
	}
	return loc, nil
}
