// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек приложения.
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Rabbit                  `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Stripe                  `yaml:"stripe"`
	ModelAPI                `yaml:"model_api"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"0.0.0.0:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Rabbit структура для настройки подключения к RabbitMQ.
type Rabbit struct {
	RabbitURL     string        `yaml:"rabbit_url" env:"RABBIT_URL"`
	ConnectRetry  int           `yaml:"connect_retry" env-default:"5"`
	ConnectDelay  time.Duration `yaml:"connect_delay" env-default:"3s"`
	NotifyQueue   string        `yaml:"notify_queue" env-default:"billing-notifications"`
	NotifyRouting string        `yaml:"notify_routing" env-default:"billing"`
}

// SMTP структура для настройки исходящей почты.
type SMTP struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port" env-default:"587"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
}

// Stripe структура с ключами и ценами платёжного провайдера.
type Stripe struct {
	StripeSecretKey     string `yaml:"stripe_secret_key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDPro          string `yaml:"price_id_pro" env:"STRIPE_PRICE_PRO"`
	PriceIDPremium      string `yaml:"price_id_premium" env:"STRIPE_PRICE_PREMIUM"`
	PriceIDEnterprise   string `yaml:"price_id_enterprise" env:"STRIPE_PRICE_ENTERPRISE"`
	SuccessURL          string `yaml:"success_url"`
	CancelURL           string `yaml:"cancel_url"`
	PortalReturnURL     string `yaml:"portal_return_url"`
}

// ModelAPI структура с настройками внешнего API языковой модели.
type ModelAPI struct {
	ModelAPIKey  string        `yaml:"model_api_key" env:"MODEL_API_KEY"`
	ModelBaseURL string        `yaml:"model_base_url"`
	ModelName    string        `yaml:"model_name" env-default:"gpt-4o-mini"`
	MaxTokens    int           `yaml:"max_tokens" env-default:"8192"`
	ModelTimeout time.Duration `yaml:"model_timeout" env-default:"120s"`
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
