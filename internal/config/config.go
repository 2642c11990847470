package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, relative to the working directory.
const ConfigPath = "config.yaml"

// PathFromEnv returns LEARNAI_CONFIG when set, otherwise ConfigPath.
func PathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("LEARNAI_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	DatabaseURL       string   `yaml:"databaseURL"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	JWTSecret         string   `yaml:"jwtSecret"`
	JWTIssuer         string   `yaml:"jwtIssuer"`
	JWTAudience       string   `yaml:"jwtAudience"`
	SessionTTL        string   `yaml:"sessionTTL"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`

	LLMProvider  string `yaml:"llmProvider"`
	LLMBaseURL   string `yaml:"llmBaseURL"`
	LLMAPIKey    string `yaml:"llmAPIKey"`
	LLMModel     string `yaml:"llmModel"`
	LLMMaxTokens int    `yaml:"llmMaxTokens"`
	LLMTimeout   string `yaml:"llmTimeout"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	SignupRateLimitPerMinute int `yaml:"signupRateLimitPerMinute"`
	LoginRateLimitPerMinute  int `yaml:"loginRateLimitPerMinute"`
	ChatRateLimitPerMinute   int `yaml:"chatRateLimitPerMinute"`

	// Parsed from SessionTTL and LLMTimeout by Load.
	SessionTTLDuration time.Duration `yaml:"-"`
	LLMTimeoutDuration time.Duration `yaml:"-"`
}

// DefaultSessionTTL applies when sessionTTL is unset.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result. A missing file is not an error so the
// service can be configured from the environment alone.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.JWTIssuer, "JWT_ISSUER")
	overrideString(&cfg.JWTAudience, "JWT_AUDIENCE")
	overrideString(&cfg.SessionTTL, "SESSION_TTL")
	overrideList(&cfg.AllowedOrigins, "CORS_ALLOWED_ORIGINS")
	overrideList(&cfg.TrustedProxyCIDRs, "TRUSTED_PROXY_CIDRS")

	overrideString(&cfg.LLMProvider, "LLM_PROVIDER")
	overrideString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	overrideString(&cfg.LLMModel, "LLM_MODEL")
	overrideString(&cfg.LLMTimeout, "LLM_TIMEOUT")
	if cfg.LLMAPIKey == "" {
		overrideString(&cfg.LLMAPIKey, "ANTHROPIC_API_KEY")
	}
	overrideString(&cfg.LLMAPIKey, "LLM_API_KEY")
	overrideInt(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS")

	overrideString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	overrideString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	overrideString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	overrideString(&cfg.MinioBucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}

	overrideInt(&cfg.SignupRateLimitPerMinute, "SIGNUP_RATE_LIMIT_PER_MINUTE")
	overrideInt(&cfg.LoginRateLimitPerMinute, "LOGIN_RATE_LIMIT_PER_MINUTE")
	overrideInt(&cfg.ChatRateLimitPerMinute, "CHAT_RATE_LIMIT_PER_MINUTE")

	if cfg.Port == "" {
		cfg.Port = "3000"
	}
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func validateConfig(cfg *FileConfig) error {
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("config: port %q is not a number", cfg.Port)
	}
	if len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return errors.New("config: jwtSecret must be at least 32 bytes (set JWT_SECRET)")
	}
	ttl, err := parseDuration("sessionTTL", cfg.SessionTTL)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	cfg.SessionTTLDuration = ttl
	timeout, err := parseDuration("llmTimeout", cfg.LLMTimeout)
	if err != nil {
		return err
	}
	cfg.LLMTimeoutDuration = timeout
	if cfg.LLMMaxTokens < 0 {
		return errors.New("config: llmMaxTokens must be >= 0")
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioBucket == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "") {
		return errors.New("config: minioEndpoint requires minioBucket, minioAccessKey and minioSecretKey")
	}
	if cfg.SignupRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.ChatRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// parseDuration parses an optional duration field; empty yields zero.
func parseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", field)
	}
	return dur, nil
}
