package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Upstream ledger OAuth client
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string

	// Upstream ledger endpoints
	AuthorizeURL   string
	TokenURL       string
	ConnectionsURL string
	APIURL         string

	// Embed request signing
	HMACSecret string

	// Tenant override: pins the tenant instead of committing to the first
	// connection returned by the upstream.
	TenantID string

	// Persisted credential
	CredentialsFile string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Debug surface (/debug-hmac). Off unless explicitly enabled; the
	// endpoint dumps signature comparison inputs.
	DebugEndpoints bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClientID:     getEnv("LEDGER_CLIENT_ID", ""),
		ClientSecret: getEnv("LEDGER_CLIENT_SECRET", ""),
		RedirectURI:  getEnv("LEDGER_REDIRECT_URI", "http://localhost:8080/auth/callback"),
		Scopes:       getEnv("LEDGER_SCOPES", "offline_access accounting.contacts.read accounting.transactions.read"),

		AuthorizeURL:   getEnv("LEDGER_AUTH_URL", "https://identity.ledger.example.com/connect/authorize"),
		TokenURL:       getEnv("LEDGER_TOKEN_URL", "https://identity.ledger.example.com/connect/token"),
		ConnectionsURL: getEnv("LEDGER_CONNECTIONS_URL", "https://api.ledger.example.com/connections"),
		APIURL:         getEnv("LEDGER_API_URL", "https://api.ledger.example.com/v2"),

		HMACSecret: getEnv("HMAC_SECRET", ""),

		TenantID: getEnv("TENANT_ID", ""),

		CredentialsFile: getEnv("CREDENTIALS_FILE", "credentials.json"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 10),

		CacheTTL: getEnvDuration("CACHE_TTL", 2*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		DebugEndpoints: getEnv("DEBUG_ENDPOINTS", "false") == "true",
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
