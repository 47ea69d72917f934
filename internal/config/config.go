package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig   // Настройки HTTP сервера
	Database DatabaseConfig // Настройки подключения к БД
	Redis    RedisConfig    // Настройки Redis (блокировки и очередь задач)
	Auth     AuthConfig     // Настройки provisioning токенов
	SCIM     SCIMConfig     // Настройки SCIM провижининга
	Lock     LockConfig     // Настройки распределенных блокировок
	Worker   WorkerConfig   // Настройки фонового воркера
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"scim"`
	Password string `envconfig:"DB_PASSWORD" default:"scim_pass"`
	Name     string `envconfig:"DB_NAME" default:"scim"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// AuthConfig содержит настройки provisioning токенов
type AuthConfig struct {
	Secret          string `envconfig:"AUTH_SECRET" required:"true"`
	ExpirationHours int    `envconfig:"AUTH_EXPIRATION_HOURS" default:"24"`
}

// SCIMConfig содержит настройки провижининга
type SCIMConfig struct {
	DefaultInviteRole string `envconfig:"SCIM_DEFAULT_INVITE_ROLE" default:"member"`
	InvitesEnabled    bool   `envconfig:"SCIM_INVITES_ENABLED" default:"true"`
}

// LockConfig содержит настройки распределенных блокировок
type LockConfig struct {
	TTL         time.Duration `envconfig:"LOCK_TTL" default:"5s"`
	MaxAttempts int           `envconfig:"LOCK_MAX_ATTEMPTS" default:"10"`
	RetryDelay  time.Duration `envconfig:"LOCK_RETRY_DELAY" default:"100ms"`
}

// WorkerConfig содержит настройки фонового воркера
type WorkerConfig struct {
	Concurrency   int           `envconfig:"WORKER_CONCURRENCY" default:"5"`
	DeletionDelay time.Duration `envconfig:"WORKER_DELETION_DELAY" default:"1h"`
}

// GetExpiration возвращает срок действия токена как time.Duration
func (a AuthConfig) GetExpiration() time.Duration {
	return time.Duration(a.ExpirationHours) * time.Hour
}

// DSN возвращает строку подключения к PostgreSQL
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Load читает конфигурацию из переменных окружения
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
