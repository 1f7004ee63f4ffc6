package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string

	// SecretKey is the owner's signing key, 64 hex characters. Empty runs
	// the node read-only: resolution works, authoring is disabled.
	SecretKey string

	// APIToken protects the authoring routes as a bearer token. Empty
	// disables the check.
	APIToken string

	// IdentityDomain qualifies bare @name identifiers during resolution.
	IdentityDomain string

	// RelayURLs is a comma-separated relay list, each relay serving both
	// reads and writes. config.yaml replaces it when it declares relays.
	RelayURLs string

	// Network leg deadlines.
	DiscoveryTimeout time.Duration
	LoadTimeout      time.Duration
	PublishTimeout   time.Duration
	WellKnownTimeout time.Duration

	// CORS
	CORSOrigins string // Comma-separated allowed origins, e.g. "https://example.com,https://app.example.com"
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:              getEnv("ENV", "development"),
		ServerAddr:       getEnv("SERVER_ADDR", ":3000"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:3000"),
		SecretKey:        getEnv("SECRET_KEY", ""),
		APIToken:         getEnv("API_TOKEN", ""),
		IdentityDomain:   getEnv("IDENTITY_DOMAIN", ""),
		RelayURLs:        getEnv("RELAY_URLS", ""),
		DiscoveryTimeout: getDuration("DISCOVERY_TIMEOUT", 2*time.Second),
		LoadTimeout:      getDuration("LOAD_TIMEOUT", 8*time.Second),
		PublishTimeout:   getDuration("PUBLISH_TIMEOUT", 10*time.Second),
		WellKnownTimeout: getDuration("WELLKNOWN_TIMEOUT", 5*time.Second),
		CORSOrigins:      getEnv("CORS_ORIGINS", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// RelayList splits RelayURLs into trimmed, non-empty entries.
func (c *Config) RelayList() []string {
	var out []string
	for _, u := range strings.Split(c.RelayURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
