package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// AI service settings
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY" default:""`
	WhisperModel    string `envconfig:"WHISPER_MODEL" default:"whisper-1"`
	WhisperLanguage string `envconfig:"WHISPER_LANGUAGE" default:"id"`
	GroqAPIKey      string `envconfig:"GROQ_API_KEY" default:""`
	GroqModel       string `envconfig:"GROQ_MODEL" default:"llama-3.1-8b-instant"`

	// Pipeline settings
	TempDir              string `envconfig:"TEMP_DIR" default:"/tmp/meeting_summarizer"`
	MaxUploadSizeMB      int    `envconfig:"MAX_UPLOAD_SIZE_MB" default:"500"`
	ConvertTimeoutSec    int    `envconfig:"CONVERT_TIMEOUT_SEC" default:"300"`
	ProbeTimeoutSec      int    `envconfig:"PROBE_TIMEOUT_SEC" default:"30"`
	TranscribeTimeoutSec int    `envconfig:"TRANSCRIBE_TIMEOUT_SEC" default:"600"`
	SummarizeTimeoutSec  int    `envconfig:"SUMMARIZE_TIMEOUT_SEC" default:"120"`
	SweepIntervalMin     int    `envconfig:"SWEEP_INTERVAL_MIN" default:"60"`

	// Admin review gate for manual purchase verification
	AdminToken string `envconfig:"ADMIN_TOKEN" default:""`

	// Xendit payment settings
	XenditBaseURL      string `envconfig:"XENDIT_BASE_URL" default:"https://api.xendit.co"`
	XenditSecretKey    string `envconfig:"XENDIT_SECRET_KEY" default:""`
	XenditWebhookToken string `envconfig:"XENDIT_WEBHOOK_TOKEN" default:""`
	FrontendURL        string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	// Proof image storage (S3-compatible)
	S3URL       string `envconfig:"S3_URL" default:""`
	S3Bucket    string `envconfig:"S3_BUCKET" default:""`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:""`

	// Secrets whose env value starts with "sm://" are resolved from Google
	// Secret Manager at startup; see Resolver.
	GCPProjectID string `envconfig:"GCP_PROJECT_ID" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate enforces fail-closed settings. The webhook-token and admin-token
// development bypasses must not survive into a production deployment.
func (c *Config) validate() error {
	if c.Environment != "production" {
		return nil
	}
	if c.XenditWebhookToken == "" {
		return errors.New("XENDIT_WEBHOOK_TOKEN must be set in production")
	}
	if c.AdminToken == "" {
		return errors.New("ADMIN_TOKEN must be set in production")
	}
	if c.XenditSecretKey == "" {
		return errors.New("XENDIT_SECRET_KEY must be set in production")
	}
	return nil
}

// RuntimeIssues reports non-fatal configuration problems for the health
// endpoint. The server starts without AI credentials, but uploads will fail.
func (c *Config) RuntimeIssues() []string {
	var issues []string
	if c.OpenAIAPIKey == "" {
		issues = append(issues, "OPENAI_API_KEY is not set")
	}
	if c.GroqAPIKey == "" {
		issues = append(issues, "GROQ_API_KEY is not set")
	}
	if c.XenditSecretKey == "" {
		issues = append(issues, fmt.Sprintf("XENDIT_SECRET_KEY is not set (%s)", c.Environment))
	}
	return issues
}
