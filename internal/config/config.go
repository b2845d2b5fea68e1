package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port        int    `json:"port"`
	Host        string `json:"host"`
	Environment string `json:"environment"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Authentication configuration. A scheme is active only when its
	// material is configured: API keys for ApiKey, a static token for
	// BearerToken, a JWKS URI for Jwt.
	AuthEnabled    bool          `json:"auth_enabled"`
	APIKeys        []string      `json:"api_keys"`
	APIKeyHeader   string        `json:"api_key_header"`
	BearerToken    string        `json:"bearer_token"`
	JWKSURI        string        `json:"jwks_uri"`
	JWTIssuer      string        `json:"jwt_issuer"`
	JWTAudience    string        `json:"jwt_audience"`
	RequiredScopes []string      `json:"required_scopes"`
	JWKSRefresh    time.Duration `json:"jwks_refresh"`

	// Development token issuer configuration
	IssuerEnabled  bool          `json:"issuer_enabled"`
	SigningKeyPath string        `json:"signing_key_path"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`

	// Operation timeouts
	StoreTimeout  time.Duration `json:"store_timeout"`
	NotifyTimeout time.Duration `json:"notify_timeout"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, Environment: %s, LogLevel: %s, AuthEnabled: %t, APIKeys: [%d keys], APIKeyHeader: %s, BearerToken: [REDACTED], JWKSURI: %s, JWTIssuer: %s, JWTAudience: %s, RequiredScopes: %v, JWKSRefresh: %s, IssuerEnabled: %t, AccessTokenTTL: %s, StoreTimeout: %s, NotifyTimeout: %s}",
		c.Port, c.Host, c.Environment, c.LogLevel, c.AuthEnabled, len(c.APIKeys), c.APIKeyHeader,
		c.JWKSURI, c.JWTIssuer, c.JWTAudience, c.RequiredScopes, c.JWKSRefresh,
		c.IssuerEnabled, c.AccessTokenTTL, c.StoreTimeout, c.NotifyTimeout)
}

// HasAPIKeys reports whether the ApiKey scheme is configured.
func (c *Config) HasAPIKeys() bool { return len(c.APIKeys) > 0 }

// HasBearerToken reports whether the static BearerToken scheme is configured.
func (c *Config) HasBearerToken() bool { return c.BearerToken != "" }

// HasJWT reports whether the Jwt scheme is configured.
func (c *Config) HasJWT() bool { return c.JWKSURI != "" }

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// It also validates formats like the JWKS URI and the auth scheme material
// Returns an error if any required environment variable is missing or invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, err
	}

	jwksURI := GetEnvWithDefault("AUTH_JWT_JWKS_URI", "")
	if jwksURI != "" {
		if _, err := url.ParseRequestURI(jwksURI); err != nil {
			return nil, fmt.Errorf("invalid AUTH_JWT_JWKS_URI format: %s", jwksURI)
		}
	}

	jwksRefresh, err := time.ParseDuration(GetEnvWithDefault("AUTH_JWT_JWKS_REFRESH", "5m"))
	if err != nil {
		return nil, err
	}
	tokenTTL, err := time.ParseDuration(GetEnvWithDefault("OAUTH_ACCESS_TOKEN_TTL", "1h"))
	if err != nil {
		return nil, err
	}
	storeTimeout, err := time.ParseDuration(GetEnvWithDefault("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, err
	}
	notifyTimeout, err := time.ParseDuration(GetEnvWithDefault("NOTIFY_TIMEOUT", "2s"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Port:           port,
		Host:           GetEnvWithDefault("APP_HOST", "localhost"),
		Environment:    GetEnvWithDefault("APP_ENV", "development"),
		LogLevel:       GetEnvWithDefault("LOG_LEVEL", "info"),
		AuthEnabled:    GetEnvAsType("AUTH_ENABLED", false),
		APIKeys:        splitList(GetEnvWithDefault("AUTH_API_KEYS", "")),
		APIKeyHeader:   GetEnvWithDefault("AUTH_API_KEY_HEADER", "X-API-Key"),
		BearerToken:    GetEnvWithDefault("AUTH_BEARER_TOKEN", ""),
		JWKSURI:        jwksURI,
		JWTIssuer:      GetEnvWithDefault("AUTH_JWT_ISSUER", ""),
		JWTAudience:    GetEnvWithDefault("AUTH_JWT_AUDIENCE", ""),
		RequiredScopes: splitList(GetEnvWithDefault("AUTH_JWT_REQUIRED_SCOPES", "")),
		JWKSRefresh:    jwksRefresh,
		IssuerEnabled:  GetEnvAsType("OAUTH_ISSUER_ENABLED", true),
		SigningKeyPath: GetEnvWithDefault("OAUTH_SIGNING_KEY", ""),
		AccessTokenTTL: tokenTTL,
		StoreTimeout:   storeTimeout,
		NotifyTimeout:  notifyTimeout,
	}

	if config.AuthEnabled && !config.HasAPIKeys() && !config.HasBearerToken() && !config.HasJWT() {
		return nil, errors.New("AUTH_ENABLED is set but no credential scheme is configured (AUTH_API_KEYS, AUTH_BEARER_TOKEN or AUTH_JWT_JWKS_URI)")
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// splitList parses a comma or space separated environment value into a
// slice, dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Warnf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
