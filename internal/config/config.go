// Package config loads server settings from defaults, an optional YAML file
// and INTELLITEST_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "INTELLITEST"

type Config struct {
	Server    Server
	Database  Database
	Auth      Auth
	Cache     Cache
	AI        AI
	NATS      NATS
	Storage   Storage
	List      List
	Log       Log
	Bootstrap Bootstrap
}

type Server struct {
	Addr      string
	RPCSocket string
}

type Database struct {
	Path string
}

type Auth struct {
	JWTSecret    string
	JWTAlgorithm string
	TokenTTL     time.Duration
}

type Cache struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProjectTTL    time.Duration
}

type AI struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

type NATS struct {
	URL           string
	SubjectPrefix string
}

type Storage struct {
	UploadDir      string
	MaxUploadBytes int64
}

type List struct {
	MaxLimit int
}

type Log struct {
	Level  string
	Format string
}

type Bootstrap struct {
	AdminEmail    string
	AdminPassword string
}

var keys = []string{
	"server.addr", "server.rpc_socket", "database.path",
	"auth.jwt_secret", "auth.jwt_algorithm", "auth.token_ttl",
	"cache.redis_addr", "cache.redis_password", "cache.redis_db", "cache.project_ttl",
	"ai.api_key", "ai.base_url", "ai.model", "ai.timeout", "ai.max_attempts",
	"nats.url", "nats.subject_prefix",
	"storage.upload_dir", "storage.max_upload_bytes",
	"list.max_limit", "log.level", "log.format",
	"bootstrap.admin_email", "bootstrap.admin_password",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rpc_socket", "./data/intellitest.sock")
	v.SetDefault("database.path", "./data/intellitest.db")
	v.SetDefault("auth.jwt_algorithm", "HS256")
	v.SetDefault("auth.token_ttl", 30*time.Minute)
	v.SetDefault("cache.project_ttl", time.Hour)
	v.SetDefault("ai.model", "gpt-4o")
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.max_attempts", 3)
	v.SetDefault("nats.subject_prefix", "intellitest")
	v.SetDefault("storage.upload_dir", "./data/uploads")
	v.SetDefault("storage.max_upload_bytes", int64(10<<20))
	v.SetDefault("list.max_limit", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path when it is non-empty. A missing default file is fine; a
// missing explicit file is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("intellitest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Server:   Server{Addr: v.GetString("server.addr"), RPCSocket: v.GetString("server.rpc_socket")},
		Database: Database{Path: v.GetString("database.path")},
		Auth: Auth{
			JWTSecret:    v.GetString("auth.jwt_secret"),
			JWTAlgorithm: v.GetString("auth.jwt_algorithm"),
			TokenTTL:     v.GetDuration("auth.token_ttl"),
		},
		Cache: Cache{
			RedisAddr:     v.GetString("cache.redis_addr"),
			RedisPassword: v.GetString("cache.redis_password"),
			RedisDB:       v.GetInt("cache.redis_db"),
			ProjectTTL:    v.GetDuration("cache.project_ttl"),
		},
		AI: AI{
			APIKey:      v.GetString("ai.api_key"),
			BaseURL:     v.GetString("ai.base_url"),
			Model:       v.GetString("ai.model"),
			Timeout:     v.GetDuration("ai.timeout"),
			MaxAttempts: v.GetInt("ai.max_attempts"),
		},
		NATS:      NATS{URL: v.GetString("nats.url"), SubjectPrefix: v.GetString("nats.subject_prefix")},
		Storage:   Storage{UploadDir: v.GetString("storage.upload_dir"), MaxUploadBytes: v.GetInt64("storage.max_upload_bytes")},
		List:      List{MaxLimit: v.GetInt("list.max_limit")},
		Log:       Log{Level: v.GetString("log.level"), Format: v.GetString("log.format")},
		Bootstrap: Bootstrap{AdminEmail: v.GetString("bootstrap.admin_email"), AdminPassword: v.GetString("bootstrap.admin_password")},
	}
	return cfg, nil
}

// Validate checks what the server needs before it can start.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret is required (set INTELLITEST_AUTH_JWT_SECRET)")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return errors.New("storage.max_upload_bytes must be positive")
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
