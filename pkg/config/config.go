package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     string
	BasePath string

	// Logging settings
	LogLevel  string
	LogFormat string // "json" or "text"

	// Primary geocoder (Nominatim-compatible search endpoint)
	NominatimBaseURL   string
	NominatimUserAgent string
	NominatimInterval  time.Duration // minimum spacing between calls

	// Secondary geocoder (OpenCage-compatible); empty key disables it
	OpenCageBaseURL string
	OpenCageAPIKey  string

	HTTPTimeout time.Duration

	// Batch defaults
	DefaultCountry string

	// Bounded in-process cache of primary responses (entries; 0 disables)
	GeocodeCacheSize int

	// Optional YAML file extending country keywords and region abbreviations
	RulesPath string

	// Metrics exposition
	MetricsEnabled bool
	MetricsPath    string
}

func Load() *Config {
	interval, _ := time.ParseDuration(getEnv("NOMINATIM_INTERVAL", "1200ms"))
	if interval <= 0 {
		interval = 1200 * time.Millisecond
	}
	httpTimeout, _ := time.ParseDuration(getEnv("HTTP_TIMEOUT", "10s"))
	if httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
	}
	cacheSize, _ := strconv.Atoi(getEnv("GEOCODE_CACHE_SIZE", "256"))
	metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))

	return &Config{
		Port:     getEnv("PORT", "8080"),
		BasePath: getEnv("BASE_PATH", "/"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		NominatimBaseURL:   getEnv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "address-verifier/1.0 (ops@example.com)"),
		NominatimInterval:  interval,

		OpenCageBaseURL: getEnv("OPENCAGE_BASE_URL", "https://api.opencagedata.com/geocode/v1/json"),
		OpenCageAPIKey:  getEnv("OPENCAGE_API_KEY", ""),

		HTTPTimeout: httpTimeout,

		DefaultCountry:   getEnv("DEFAULT_COUNTRY", ""),
		GeocodeCacheSize: cacheSize,
		RulesPath:        getEnv("ADDRESS_RULES_PATH", ""),

		MetricsEnabled: metricsEnabled,
		MetricsPath:    getEnv("METRICS_PATH", "/metrics"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
