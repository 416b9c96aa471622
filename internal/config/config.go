package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServerConfig — конфигурация HTTP-сервера движка новелл.
// Секреты (пароль БД) читаются из файлов Docker Secrets, а не из
// переменных окружения.
type ServerConfig struct {
	Env      string `envconfig:"ENV" default:"development"`
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" required:"true"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" required:"true"`
	DBName        string        `envconfig:"DB_NAME" required:"true"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Redis: хранение снимков игровых сессий
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL    time.Duration `envconfig:"PLAY_SESSION_TTL" default:"720h"`
	RedisPassword string

	// RabbitMQ: очередь задач генерации
	RabbitMQURL         string `envconfig:"RABBITMQ_URL" required:"true"`
	GenerationTaskQueue string `envconfig:"GENERATION_TASK_QUEUE" default:"novel_generation_tasks"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Лимит на запуск генераций: запросов в минуту с одного пользователя
	GenerateRateLimit int64 `envconfig:"GENERATE_RATE_LIMIT" default:"3"`
}

// DSN возвращает строку подключения PostgreSQL.
func (c *ServerConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadServerConfig загружает конфигурацию сервера из окружения и секретов.
func LoadServerConfig() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process server config: %w", err)
	}

	var err error
	cfg.DBPassword, err = ReadSecret("db_password")
	if err != nil {
		return nil, err
	}

	// Пароль Redis опционален: локальный Redis обычно без него.
	if pwd, err := ReadSecret("redis_password"); err == nil {
		cfg.RedisPassword = pwd
	}

	return &cfg, nil
}

// ReadSecret читает секрет из стандартного пути Docker Secrets.
// Fallback на переменные окружения намеренно отсутствует, чтобы
// production-поведение было консистентным.
func ReadSecret(name string) (string, error) {
	path := "/run/secrets/" + name
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}
