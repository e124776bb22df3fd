// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	IsDatabaseEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetAppBaseURL() string
}

// TwilioConfig provides settings for the carrier and WhatsApp transport.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioPhoneNumber() string
	GetTwilioWhatsAppNumber() string
	GetAppBaseURL() string
}

// EngineConfig provides settings for the conversational voice engine.
type EngineConfig interface {
	GetElevenLabsAPIKey() string
	GetElevenLabsAgentID() string
	GetElevenLabsAgentIDEN() string
	GetCallPlacementTimeout() time.Duration
	GetTranscriptFetchTimeout() time.Duration
}

// WebhookConfig provides settings for validating inbound machine webhooks.
type WebhookConfig interface {
	GetTwilioAuthToken() string
	GetAppBaseURL() string
	GetEngineWebhookSecret() string
}

// GenAIConfig provides settings for the LLM intent extractor and summarizer.
type GenAIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
}

// PlacesConfig provides settings for the provider search collaborator.
type PlacesConfig interface {
	GetPlacesAPIKey() string
	IsPlacesEnabled() bool
}

// CalendarConfig provides settings for the Google Calendar collaborator.
type CalendarConfig interface {
	GetServiceAccountFile() string
	GetCalendarID() string
	GetCalendarTimezone() string
	IsCalendarEnabled() bool
}

// ConversationConfig provides tuning knobs for the orchestration core.
type ConversationConfig interface {
	GetMaxCampaignCalls() int
	GetCampaignDispatchInterval() time.Duration
	GetTranscriptDelay() time.Duration
	GetDedupCapacity() int
	GetStuckCallTTL() time.Duration
	GetStateStore() string
	GetRedisURL() string
}

// SchedulerConfig provides settings for the asynq scheduler/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetStuckCallSweepInterval() time.Duration
}

// SMTPConfig provides settings for outbound notification email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetNotifyEmailAddress() string
	IsEmailEnabled() bool
}

// StorageConfig provides settings for the transcript archive (MinIO).
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketTranscripts() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	AppBaseURL               string
	CORSAllowAll             bool
	CORSOrigins              []string
	DatabaseURL              string
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioPhoneNumber        string
	TwilioWhatsAppNumber     string
	ElevenLabsAPIKey         string
	ElevenLabsAgentID        string
	ElevenLabsAgentIDEN      string
	ElevenLabsWebhookSecret  string
	CallPlacementTimeout     time.Duration
	TranscriptFetchTimeout   time.Duration
	GeminiAPIKey             string
	GeminiModel              string
	PlacesAPIKey             string
	ServiceAccountFile       string
	CalendarID               string
	CalendarTimezone         string
	MaxCampaignCalls         int
	CampaignDispatchInterval time.Duration
	TranscriptDelay          time.Duration
	DedupCapacity            int
	StuckCallTTL             time.Duration
	StateStore               string
	RedisURL                 string
	AsynqQueueName           string
	AsynqConcurrency         int
	StuckCallSweepInterval   time.Duration
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	NotifyEmailAddress       string
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketTranscripts   string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string  { return c.DatabaseURL }
func (c *Config) IsDatabaseEnabled() bool { return c.DatabaseURL != "" }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetAppBaseURL() string    { return c.AppBaseURL }

// TwilioConfig implementation
func (c *Config) GetTwilioAccountSID() string     { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string      { return c.TwilioAuthToken }
func (c *Config) GetTwilioPhoneNumber() string    { return c.TwilioPhoneNumber }
func (c *Config) GetTwilioWhatsAppNumber() string { return c.TwilioWhatsAppNumber }

// EngineConfig implementation
func (c *Config) GetElevenLabsAPIKey() string             { return c.ElevenLabsAPIKey }
func (c *Config) GetElevenLabsAgentID() string            { return c.ElevenLabsAgentID }
func (c *Config) GetElevenLabsAgentIDEN() string          { return c.ElevenLabsAgentIDEN }
func (c *Config) GetCallPlacementTimeout() time.Duration  { return c.CallPlacementTimeout }
func (c *Config) GetTranscriptFetchTimeout() time.Duration { return c.TranscriptFetchTimeout }

// WebhookConfig implementation
func (c *Config) GetEngineWebhookSecret() string { return c.ElevenLabsWebhookSecret }

// GenAIConfig implementation
func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string  { return c.GeminiModel }

// PlacesConfig implementation
func (c *Config) GetPlacesAPIKey() string { return c.PlacesAPIKey }
func (c *Config) IsPlacesEnabled() bool   { return c.PlacesAPIKey != "" }

// CalendarConfig implementation
func (c *Config) GetServiceAccountFile() string { return c.ServiceAccountFile }
func (c *Config) GetCalendarID() string         { return c.CalendarID }
func (c *Config) GetCalendarTimezone() string   { return c.CalendarTimezone }
func (c *Config) IsCalendarEnabled() bool {
	return c.ServiceAccountFile != "" && c.CalendarID != ""
}

// ConversationConfig implementation
func (c *Config) GetMaxCampaignCalls() int                   { return c.MaxCampaignCalls }
func (c *Config) GetCampaignDispatchInterval() time.Duration { return c.CampaignDispatchInterval }
func (c *Config) GetTranscriptDelay() time.Duration          { return c.TranscriptDelay }
func (c *Config) GetDedupCapacity() int                      { return c.DedupCapacity }
func (c *Config) GetStuckCallTTL() time.Duration             { return c.StuckCallTTL }
func (c *Config) GetStateStore() string                      { return c.StateStore }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                      { return c.RedisURL }
func (c *Config) GetAsynqQueueName() string                { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                 { return c.AsynqConcurrency }
func (c *Config) GetStuckCallSweepInterval() time.Duration { return c.StuckCallSweepInterval }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string           { return c.SMTPHost }
func (c *Config) GetSMTPPort() int              { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string       { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string       { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string      { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string   { return c.EmailFromAddress }
func (c *Config) GetNotifyEmailAddress() string { return c.NotifyEmailAddress }
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPHost != "" && c.NotifyEmailAddress != ""
}

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string          { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string         { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string         { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool              { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketTranscripts() string { return c.MinioBucketTranscripts }
func (c *Config) IsMinIOEnabled() bool              { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		AppBaseURL:               getEnv("APP_BASE_URL", "http://localhost:8080"),
		CORSAllowAll:             strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:              splitCSV(getEnv("CORS_ORIGINS", "")),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber:        getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioWhatsAppNumber:     getEnv("TWILIO_WHATSAPP_NUMBER", "whatsapp:+14155238886"),
		ElevenLabsAPIKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsAgentID:        getEnv("ELEVENLABS_AGENT_ID", ""),
		ElevenLabsAgentIDEN:      getEnv("ELEVENLABS_AGENT_ID_EN", ""),
		ElevenLabsWebhookSecret:  getEnv("ELEVENLABS_WEBHOOK_SECRET", ""),
		CallPlacementTimeout:     mustDuration(getEnv("CALL_PLACEMENT_TIMEOUT", "20s")),
		TranscriptFetchTimeout:   mustDuration(getEnv("TRANSCRIPT_FETCH_TIMEOUT", "15s")),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModel:              getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		PlacesAPIKey:             getEnv("GOOGLE_PLACES_API_KEY", ""),
		ServiceAccountFile:       getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		CalendarID:               getEnv("GOOGLE_CALENDAR_ID", ""),
		CalendarTimezone:         getEnv("CALENDAR_TIMEZONE", "America/Argentina/Buenos_Aires"),
		MaxCampaignCalls:         mustInt(getEnv("MAX_CAMPAIGN_CALLS", "3")),
		CampaignDispatchInterval: mustDuration(getEnv("CAMPAIGN_DISPATCH_INTERVAL", "2s")),
		TranscriptDelay:          mustDuration(getEnv("TRANSCRIPT_DELAY", "8s")),
		DedupCapacity:            mustInt(getEnv("MESSAGE_DEDUP_CAPACITY", "1000")),
		StuckCallTTL:             mustDuration(getEnv("STUCK_CALL_TTL", "30m")),
		StateStore:               getEnv("STATE_STORE", "memory"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "vocero"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		StuckCallSweepInterval:   mustDuration(getEnv("STUCK_CALL_SWEEP_INTERVAL", "5m")),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Vocero"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		NotifyEmailAddress:       getEnv("NOTIFY_EMAIL_ADDRESS", ""),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketTranscripts:   getEnv("MINIO_BUCKET_TRANSCRIPTS", "call-transcripts"),
	}

	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	if cfg.TwilioPhoneNumber == "" {
		return nil, fmt.Errorf("TWILIO_PHONE_NUMBER is required")
	}
	if cfg.ElevenLabsAPIKey == "" || cfg.ElevenLabsAgentID == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY and ELEVENLABS_AGENT_ID are required")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.StateStore != "memory" && cfg.StateStore != "redis" {
		return nil, fmt.Errorf("STATE_STORE must be memory or redis, got %q", cfg.StateStore)
	}
	if cfg.StateStore == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when STATE_STORE is redis")
	}
	if cfg.MaxCampaignCalls < 1 {
		return nil, fmt.Errorf("MAX_CAMPAIGN_CALLS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
