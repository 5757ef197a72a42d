package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderMock   = "mock"
	ProviderRunPod = "runpod"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Telegram TelegramConfig
	Video    VideoConfig
	RunPod   RunPodConfig
}

type ServerConfig struct {
	Port          string
	Environment   string
	AllowOrigins  string
	WebhookSecret string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type TelegramConfig struct {
	BotToken  string
	WebAppURL string
}

type VideoConfig struct {
	Provider            string
	DefaultChannel      string
	StatusCheckDelay    time.Duration
	StatusCheckMaxTries int // 0 keeps polling until the provider reports a terminal status
	QueuePollInterval   time.Duration
	QueueBatchSize      int
	QueueLease          time.Duration
	HealthCheckInterval time.Duration
}

type RunPodConfig struct {
	APIKey         string
	EndpointID     string
	BaseURL        string
	RequestTimeout time.Duration
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

var defaults = map[string]any{
	"server_port":    "8080",
	"environment":    "development",
	"allow_origins":  "*",
	"webhook_secret": "",

	"db_host":     "localhost",
	"db_port":     "5432",
	"db_user":     "videoai",
	"db_password": "videoai",
	"db_name":     "videoai",
	"db_sslmode":  "disable",

	"telegram_bot_token":  "",
	"telegram_webapp_url": "",

	"video_provider":               ProviderMock,
	"video_default_channel":        "default",
	"video_status_check_delay":     "10s",
	"video_status_check_max_tries": 0,
	"video_queue_poll_interval":    "1s",
	"video_queue_batch_size":       10,
	"video_queue_lease":            "2m",
	"video_health_check_interval":  "1m",

	"runpod_api_key":         "",
	"runpod_endpoint_id":     "",
	"runpod_base_url":        "https://api.runpod.ai/v2",
	"runpod_request_timeout": "30s",
}

// Load reads .env (if present), an optional config.yaml and the process
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          v.GetString("server_port"),
			Environment:   v.GetString("environment"),
			AllowOrigins:  v.GetString("allow_origins"),
			WebhookSecret: v.GetString("webhook_secret"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		Telegram: TelegramConfig{
			BotToken:  v.GetString("telegram_bot_token"),
			WebAppURL: v.GetString("telegram_webapp_url"),
		},
		Video: VideoConfig{
			Provider:            strings.ToLower(v.GetString("video_provider")),
			DefaultChannel:      v.GetString("video_default_channel"),
			StatusCheckDelay:    v.GetDuration("video_status_check_delay"),
			StatusCheckMaxTries: v.GetInt("video_status_check_max_tries"),
			QueuePollInterval:   v.GetDuration("video_queue_poll_interval"),
			QueueBatchSize:      v.GetInt("video_queue_batch_size"),
			QueueLease:          v.GetDuration("video_queue_lease"),
			HealthCheckInterval: v.GetDuration("video_health_check_interval"),
		},
		RunPod: RunPodConfig{
			APIKey:         v.GetString("runpod_api_key"),
			EndpointID:     v.GetString("runpod_endpoint_id"),
			BaseURL:        strings.TrimRight(v.GetString("runpod_base_url"), "/"),
			RequestTimeout: v.GetDuration("runpod_request_timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Video.Provider {
	case ProviderMock:
	case ProviderRunPod:
		if c.RunPod.APIKey == "" || c.RunPod.EndpointID == "" {
			return errors.New("runpod provider requires RUNPOD_API_KEY and RUNPOD_ENDPOINT_ID")
		}
	default:
		return fmt.Errorf("unknown video provider %q", c.Video.Provider)
	}

	if c.Video.StatusCheckDelay <= 0 {
		return errors.New("VIDEO_STATUS_CHECK_DELAY must be positive")
	}
	if c.Video.StatusCheckMaxTries < 0 {
		return errors.New("VIDEO_STATUS_CHECK_MAX_TRIES cannot be negative")
	}
	if c.Video.QueueBatchSize <= 0 {
		c.Video.QueueBatchSize = 10
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
