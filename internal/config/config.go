package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Session / scoring
	IdleTTL               time.Duration
	EvictionInterval      time.Duration
	TimeWasterThreshold   float64
	MaxAIAttempts         int
	MaxSalesAttempts      int
	AIConfidenceThreshold float64
	RoutingModeDefault    string
	VIPKeywords           []string

	// Gateway backpressure / delivery
	MaxInFlightPerChannel int
	SendTimeout           time.Duration
	SendMaxRetries        int

	// Resilience (shared by every outbound connector call)
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Durable conversation mirror (optional; empty path disables it)
	StoreDBPath string

	// Observability
	OTLPEndpoint string

	// AI backend
	ChatbotBaseURL string
	ChatbotTimeout time.Duration

	// Channel credentials
	WhatsAppToken        string
	WhatsAppVerifyToken  string
	WhatsAppAppSecret    string
	WhatsAppPhoneID      string
	TelegramToken        string
	TelegramWebhookSecret string
	MessengerAppSecret   string
	MessengerPageToken   string
	InstagramAppSecret   string
	WebChatJWTSecret     string

	// Agent console auth
	JWTSecret     string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		IdleTTL:               getEnvDuration("IDLE_TTL", time.Hour),
		EvictionInterval:      getEnvDuration("QUEUE_EVICTION_INTERVAL", 60*time.Second),
		TimeWasterThreshold:   getEnvFloat("TIME_WASTER_THRESHOLD", 7.0),
		MaxAIAttempts:         getEnvInt("MAX_AI_ATTEMPTS", 3),
		MaxSalesAttempts:      getEnvInt("MAX_SALES_ATTEMPTS", 5),
		AIConfidenceThreshold: getEnvFloat("AI_CONFIDENCE_THRESHOLD", 0.5),
		RoutingModeDefault:    getEnv("ROUTING_MODE_DEFAULT", "ai_first"),
		VIPKeywords:           getEnvList("VIP_KEYWORDS", []string{"vip", "cliente preferencial", "socio dorado"}),

		MaxInFlightPerChannel: getEnvInt("MAX_INFLIGHT_PER_CHANNEL", 1000),
		SendTimeout:           getEnvDuration("SEND_TIMEOUT", 30*time.Second),
		SendMaxRetries:        getEnvInt("SEND_MAX_RETRIES", 3),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		StoreDBPath: getEnv("STORE_DB_PATH", "./data/conversations.db"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		ChatbotBaseURL: getEnv("CHATBOT_BASE_URL", "http://localhost:9000"),
		ChatbotTimeout: getEnvDuration("CHATBOT_TIMEOUT", 10*time.Second),

		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppPhoneID:       getEnv("WHATSAPP_PHONE_ID", ""),
		TelegramToken:         getEnv("TELEGRAM_TOKEN", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		MessengerAppSecret:    getEnv("MESSENGER_APP_SECRET", ""),
		MessengerPageToken:    getEnv("MESSENGER_PAGE_TOKEN", ""),
		InstagramAppSecret:    getEnv("INSTAGRAM_APP_SECRET", ""),
		WebChatJWTSecret:      getEnv("WEBCHAT_JWT_SECRET", "router-default-dev-secret-change-me"),

		JWTSecret:     getEnv("JWT_SECRET", "router-default-dev-secret-change-me"),
		JWTAccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
