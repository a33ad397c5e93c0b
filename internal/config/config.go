// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	Stripe                  `yaml:"stripe"`
	Uploads                 `yaml:"uploads"`
	OTP                     `yaml:"otp"`
	Scheduler               `yaml:"scheduler"`
	Bootstrap               `yaml:"bootstrap"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP    string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP    time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AllowedOrigins []string      `yaml:"allowed_origins" env-default:"*"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// RabbitMQ настройки брокера для очереди писем
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
	RabbitMQPrefetch   int           `yaml:"prefetch" env-default:"10"`
}

// SMTP настройки почтового сервера
type SMTP struct {
	SMTPHost   string `yaml:"host"`
	SMTPPort   string `yaml:"port" env-default:"587"`
	SMTPUser   string `yaml:"user" env:"SMTP_USER"`
	SMTPPass   string `yaml:"password" env:"SMTP_PASSWORD"`
	AdminEmail string `yaml:"admin_email" env:"ADMIN_EMAIL"`
}

// Stripe настройки платежного провайдера
type Stripe struct {
	StripeSecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	SuccessURL          string `yaml:"success_url" env-default:"myflutterapp://payment-success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL           string `yaml:"cancel_url" env-default:"myflutterapp://payment-cancel"`
}

// Uploads настройки файлового хранилища
type Uploads struct {
	UploadsDir    string `yaml:"dir" env-default:"./uploads"`
	PublicBaseURL string `yaml:"public_base_url" env-default:"http://localhost:8080/uploads"`
	MaxUploadSize int64  `yaml:"max_upload_size" env-default:"10485760"`
}

// OTP время жизни одноразовых кодов
type OTP struct {
	OTPTTL           time.Duration `yaml:"ttl" env-default:"5m"`
	VerifiedResetTTL time.Duration `yaml:"verified_reset_ttl" env-default:"10m"`
}

// Scheduler настройки фоновых задач
type Scheduler struct {
	DemoteTrialsSpec string        `yaml:"demote_trials_spec" env-default:"0 0 * * *"`
	TrialPeriod      time.Duration `yaml:"trial_period" env-default:"72h"`
	LockExpiry       time.Duration `yaml:"lock_expiry" env-default:"5m"`
}

// Bootstrap учётная запись администратора, создаваемая при первом запуске
type Bootstrap struct {
	BootstrapAdminEmail    string `yaml:"admin_email" env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `yaml:"admin_password" env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из config/config.go
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

// IsDevelopment сообщает, можно ли отдавать отладочные данные (например, OTP) в ответах.
func (c *Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "dev"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n"+
			"RabbitMQ:\n"+
			"  MaxRetries: %d\n"+
			"  Prefetch: %d\n"+
			"SMTP:\n"+
			"  Host: %s:%s\n"+
			"Uploads:\n"+
			"  Dir: %s\n"+
			"Scheduler:\n"+
			"  DemoteTrialsSpec: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.TokenTTL,
		c.RabbitMQMaxRetries,
		c.RabbitMQPrefetch,
		c.SMTPHost,
		c.SMTPPort,
		c.UploadsDir,
		c.DemoteTrialsSpec,
	)
}
