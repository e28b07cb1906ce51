package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. QUESTLINE_AUTH_ACCESS_SECRET.
const EnvPrefix = "QUESTLINE"

// Config представляет конфигурацию сервера
type Config struct {
	Log       LogParams       `mapstructure:"log" validate:"required"`
	Env       string          `mapstructure:"env" validate:"required,oneof=dev prod test"`
	Database  DatabaseParams  `mapstructure:"database" validate:"required"`
	Auth      AuthParams      `mapstructure:"auth" validate:"required"`
	Server    ServerParams    `mapstructure:"server" validate:"required"`
	RateLimit RateLimitParams `mapstructure:"ratelimit" validate:"required"`
}

// ServerParams содержит параметры HTTP сервера
type ServerParams struct {
	Address         string        `mapstructure:"address" validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,min=1s"`
}

// AuthParams содержит параметры токенов и хеширования
type AuthParams struct {
	AccessSecret     string `mapstructure:"access_secret" validate:"required,min=16"`
	RefreshSecret    string `mapstructure:"refresh_secret" validate:"required,min=16,nefield=AccessSecret"`
	OwnerLogin       string `mapstructure:"owner_login"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes" validate:"required,min=1,max=1440"`
	RefreshTTLDays   int    `mapstructure:"refresh_ttl_days" validate:"required,min=1,max=365"`
	HashCost         int    `mapstructure:"hash_cost" validate:"required,min=4,max=31"`
	SecureCookies    bool   `mapstructure:"secure_cookies"`
}

// DatabaseParams содержит параметры подключения к БД
type DatabaseParams struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite pgx"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

// LogParams содержит параметры логирования
type LogParams struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// RateLimitParams содержит лимиты запросов в минуту на IP
type RateLimitParams struct {
	AuthPerMinute    int `mapstructure:"auth_per_minute" validate:"required,min=1"`
	DefaultPerMinute int `mapstructure:"default_per_minute" validate:"required,min=1"`
}

// AccessTTL возвращает время жизни access токена
func (a AuthParams) AccessTTL() time.Duration {
	return time.Minute * time.Duration(a.AccessTTLMinutes)
}

// RefreshTTL возвращает время жизни refresh токена
func (a AuthParams) RefreshTTL() time.Duration {
	return time.Hour * 24 * time.Duration(a.RefreshTTLDays)
}

// SlogLevel converts the configured level to slog.Level.
func (l LogParams) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaults задает значения по умолчанию.
// Каждый ключ должен быть зарегистрирован здесь, иначе viper не увидит его переменную окружения.
func defaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("auth.access_secret", "")
	v.SetDefault("auth.refresh_secret", "")
	v.SetDefault("auth.owner_login", "")
	v.SetDefault("auth.access_ttl_minutes", 15)
	v.SetDefault("auth.refresh_ttl_days", 30)
	v.SetDefault("auth.hash_cost", 10)
	v.SetDefault("auth.secure_cookies", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "questline.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("ratelimit.auth_per_minute", 10)
	v.SetDefault("ratelimit.default_per_minute", 300)
}

// Load загружает конфигурацию из необязательного YAML файла и переменных окружения.
// Переменные окружения имеют приоритет над файлом.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Список origins из окружения приходит одной строкой через запятую
	cfg.Server.AllowedOrigins = splitOrigins(cfg.Server.AllowedOrigins)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}
