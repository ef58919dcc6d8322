package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN      string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL      string `env:"RABBITMQ_URL,required=true"`
	RedisURL         string `env:"REDIS_URL,required=true"`
	WhatsAppAPIURL   string `env:"WHATSAPP_API_URL,required=true"`
	WhatsAppAPIToken string `env:"WHATSAPP_API_TOKEN,required=true"`

	// AI generator settings; leave the URL empty to run template-only. Tenants
	// with AI-authored content enabled will then fail loudly instead of
	// falling back.
	AIAPIURL string `env:"AI_API_URL"`
	AIAPIKey string `env:"AI_API_KEY"`

	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=20"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=8"`
	RunTimeBudgetSec  int    `env:"RUN_TIME_BUDGET_SEC,default=300"`
	RunCron           string `env:"RUN_CRON"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
