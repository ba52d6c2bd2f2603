package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	// LLM providers
	GeminiAPIKey   string
	GeminiModelID  string
	BedrockModelID string
	AWSRegion      string

	// Agent pipeline tuning
	HistoryWindow    int
	DecisionRetries  int
	DecisionTimeout  time.Duration
	ExecutionTimeout time.Duration
	SessionTTL       time.Duration
	ReapInterval     time.Duration

	// Redis transcript mirror
	RedisAddr     string
	RedisPassword string

	// Email delivery
	EmailProvider     string // "sendgrid", "ses", or "" for stub
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	// Google Calendar
	GoogleCalendarID   string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string

	// Slack notifications
	SlackWebhookURL string
	SlackChannelID  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),

		HistoryWindow:    getEnvAsInt("AGENT_HISTORY_WINDOW", 10),
		DecisionRetries:  getEnvAsInt("AGENT_DECISION_RETRIES", 1),
		DecisionTimeout:  getEnvAsDuration("AGENT_DECISION_TIMEOUT", 20*time.Second),
		ExecutionTimeout: getEnvAsDuration("AGENT_EXECUTION_TIMEOUT", 15*time.Second),
		SessionTTL:       getEnvAsDuration("AGENT_SESSION_TTL", 30*time.Minute),
		ReapInterval:     getEnvAsDuration("AGENT_REAP_INTERVAL", time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		EmailProvider:     getEnv("EMAIL_PROVIDER", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Assigny"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Assigny"),

		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		SlackChannelID:  getEnv("SLACK_CHANNEL_ID", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
