// Package config provides functionality for managing configuration options
// for the feed server using command-line flags, a JSON file and environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

const minSecretLen = 16

// Change sources understood by the server.
const (
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn"`

	// ChangeSource selects where media change notifications come from:
	// "postgres" (LISTEN/NOTIFY) or "redis" (pub/sub).
	ChangeSource string `json:"change_source"`

	// RedisAddr and RedisChannel configure the redis change source.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisChannel  string `json:"redis_channel"`

	// JWTSecret signs access tokens issued at login. When none is configured
	// a random secret is generated and JWTSecretGenerated is set; tokens
	// then do not survive a restart.
	JWTSecret          string `json:"jwt_secret"`
	JWTSecretGenerated bool   `json:"-"`
	// TokenTTL is the lifetime of an access token.
	TokenTTL time.Duration `json:"-"`

	// RefreshInterval re-sends snapshots to every live subscriber even when
	// no notification arrived. Zero disables it.
	RefreshInterval time.Duration `json:"-"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// LogLevel is passed to the logger.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// NewFlagSet registers all server flags on fs, writing defaults into o.
func (o *Options) NewFlagSet(fs *flag.FlagSet) {
	fs.StringVar(&o.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.ChangeSource, "source", SourcePostgres, "change source: postgres | redis")
	fs.StringVar(&o.RedisAddr, "redis", "", "redis address for the redis change source")
	fs.StringVar(&o.RedisChannel, "redis-channel", "media:changed", "redis channel carrying owner ids")
	fs.StringVar(&o.JWTSecret, "jwt-secret", "", "secret used to sign access tokens (random per start when empty)")
	fs.DurationVar(&o.TokenTTL, "token-ttl", 12*time.Hour, "access token lifetime")
	fs.DurationVar(&o.RefreshInterval, "refresh", time.Minute, "periodic snapshot refresh interval (0 disables)")
	fs.StringVar(&o.TLSCert, "tls-cert", "", "path to TLS certificate")
	fs.StringVar(&o.TLSKey, "tls-key", "", "path to TLS key")
	fs.StringVar(&o.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses args, then the optional JSON config file, then environment
// variables; later sources win.
func Parse(args []string) (*Options, error) {
	options := &Options{}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	options.NewFlagSet(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if src := os.Getenv("CHANGE_SOURCE"); src != "" {
		options.ChangeSource = src
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		options.RedisAddr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		options.RedisPassword = pw
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		options.JWTSecret = secret
	}

	if options.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		options.JWTSecret = secret
		options.JWTSecretGenerated = true
	}

	if err := options.validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func (o *Options) validate() error {
	switch o.ChangeSource {
	case SourcePostgres:
	case SourceRedis:
		if o.RedisAddr == "" {
			return fmt.Errorf("change source %q requires a redis address", o.ChangeSource)
		}
	default:
		return fmt.Errorf("unknown change source %q", o.ChangeSource)
	}
	if len(o.JWTSecret) < minSecretLen {
		return fmt.Errorf("jwt secret must be at least %d characters", minSecretLen)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
