package config

import (
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

// WorkerConfig — конфигурация воркера генерации новелл.
// Читается из config.yml с fallback на переменные окружения.
type WorkerConfig struct {
	RabbitMQ RabbitMQConfig
	Database DatabaseConfig
	AI       AIConfig
	Log      LogConfig

	GenerationTaskQueue string `yaml:"generation_task_queue" env:"GENERATION_TASK_QUEUE" env-default:"novel_generation_tasks"`
	WorkerConcurrency   int    `yaml:"worker_concurrency" env:"WORKER_CONCURRENCY" env-default:"4"`
	HealthCheckPort     string `yaml:"health_check_port" env:"HEALTH_CHECK_PORT" env-default:"8088"`
}

type RabbitMQConfig struct {
	URL string `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-required:"true"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-required:"true"`
	Name     string `yaml:"name" env:"DB_NAME" env-required:"true"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	Password string
}

type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"` // openai | ollama
	Model    string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL"` // для OpenAI-совместимых API и Ollama
	// Количество сцен по умолчанию, если задача не задаёт своё
	DefaultSceneCount int `yaml:"default_scene_count" env:"AI_DEFAULT_SCENE_COUNT" env-default:"5"`
	// Максимум токенов на один запрос генерации сцены
	MaxTokens int `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"4096"`
	APIKey    string
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// DSN возвращает строку подключения PostgreSQL воркера.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// LoadWorkerConfig загружает конфигурацию воркера.
func LoadWorkerConfig() (*WorkerConfig, error) {
	configPath := "config.yml" // Путь по умолчанию

	var cfg WorkerConfig

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v. Попытка чтения из переменных окружения.", configPath, err)
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("ошибка загрузки конфигурации воркера: %w", err)
		}
	}

	var err error
	cfg.Database.Password, err = ReadSecret("db_password")
	if err != nil {
		return nil, err
	}

	// Ключ AI-провайдера обязателен только для openai; Ollama работает без него.
	if cfg.AI.Provider == "openai" {
		cfg.AI.APIKey, err = ReadSecret("ai_api_key")
		if err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
