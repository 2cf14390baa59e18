package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Token stores
const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`

	// Polling
	PollIntervalSec int `yaml:"poll_interval_sec"`
	PollMaxAttempts int `yaml:"poll_max_attempts"` // failed cycles before a message is skipped

	// LLM
	LLMProvider    string  `yaml:"llm_provider"`
	OpenAIAPIKey   string  `yaml:"openai_api_key"`
	GeminiAPIKey   string  `yaml:"gemini_api_key"`
	LLMBaseURL     string  `yaml:"llm_base_url"`
	LLMModel       string  `yaml:"llm_model"` // empty uses the provider default
	LLMMaxTokens   int     `yaml:"llm_max_tokens"`
	LLMTemperature float64 `yaml:"llm_temperature"`
	LLMTimeoutSec  int     `yaml:"llm_timeout_sec"`

	// OAuth - Google
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	GoogleClientID        string `yaml:"google_client_id"`
	GoogleClientSecret    string `yaml:"google_client_secret"`
	GoogleRedirectURL     string `yaml:"google_redirect_url"`
	TokenStore            string `yaml:"token_store"`
	TokenFile             string `yaml:"token_file"`

	// Mail
	MailSender      string `yaml:"mail_sender"`
	WebFormURL      string `yaml:"web_form_url"`
	RecipientDomain string `yaml:"recipient_domain"`

	// Routing table
	InfraEmail      string `yaml:"infra_email"`
	AppTeamEmail    string `yaml:"app_team_email"`
	AccessMgmtEmail string `yaml:"access_mgmt_email"`
	UnknownEmail    string `yaml:"unknown_email"`

	// Redis (processed-message ledger)
	RedisURL        string `yaml:"redis_url"`
	LedgerTTLHours  int    `yaml:"ledger_ttl_hours"`
	LedgerKeyPrefix string `yaml:"ledger_key_prefix"`

	// Upload API
	UploadJWTSecret  string   `yaml:"upload_jwt_secret"`
	UploadMaxMB      int      `yaml:"upload_max_mb"`
	UploadMaxRows    int      `yaml:"upload_max_rows"` // 0 disables the limit
	UploadRatePerMin int      `yaml:"upload_rate_per_min"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
}

// Defaults returns the built-in configuration. It carries no credentials.
func Defaults() *Config {
	return &Config{
		Port:        "8080",
		Environment: "development",
		LogLevel:    "info",

		PollIntervalSec: 5,
		PollMaxAttempts: 3,

		LLMProvider:    ProviderOpenAI,
		LLMMaxTokens:   512,
		LLMTemperature: 0.2,
		LLMTimeoutSec:  60,

		GoogleCredentialsFile: "credentials.json",
		GoogleRedirectURL:     "http://localhost",
		TokenStore:            TokenStoreFile,
		TokenFile:             "token.json",

		RecipientDomain: "gmail.com",

		InfraEmail:      "infra@example.com",
		AppTeamEmail:    "app_team@example.com",
		AccessMgmtEmail: "access_mgmt@example.com",
		UnknownEmail:    "unknown@example.com",

		LedgerTTLHours:  24 * 7,
		LedgerKeyPrefix: "triage:processed:",

		UploadMaxMB:      10,
		UploadMaxRows:    100,
		UploadRatePerMin: 30,
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.PollIntervalSec = getEnvInt("POLL_INTERVAL_SEC", c.PollIntervalSec)
	c.PollMaxAttempts = getEnvInt("POLL_MAX_ATTEMPTS", c.PollMaxAttempts)

	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLMProvider))
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMTemperature = getEnvFloat("LLM_TEMPERATURE", c.LLMTemperature)
	c.LLMTimeoutSec = getEnvInt("LLM_TIMEOUT_SEC", c.LLMTimeoutSec)

	c.GoogleCredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.GoogleCredentialsFile)
	c.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.GoogleRedirectURL = getEnv("GOOGLE_REDIRECT_URL", c.GoogleRedirectURL)
	c.TokenStore = strings.ToLower(getEnv("TOKEN_STORE", c.TokenStore))
	c.TokenFile = getEnv("TOKEN_FILE", c.TokenFile)

	c.MailSender = getEnv("MAIL_SENDER", c.MailSender)
	c.WebFormURL = getEnv("WEB_FORM_URL", c.WebFormURL)
	c.RecipientDomain = getEnvAllowEmpty("RECIPIENT_DOMAIN", c.RecipientDomain)

	c.InfraEmail = getEnv("INFRA_EMAIL", c.InfraEmail)
	c.AppTeamEmail = getEnv("APP_TEAM_EMAIL", c.AppTeamEmail)
	c.AccessMgmtEmail = getEnv("ACCESS_MGMT_EMAIL", c.AccessMgmtEmail)
	c.UnknownEmail = getEnv("UNKNOWN_EMAIL", c.UnknownEmail)

	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.LedgerTTLHours = getEnvInt("LEDGER_TTL_HOURS", c.LedgerTTLHours)
	c.LedgerKeyPrefix = getEnv("LEDGER_KEY_PREFIX", c.LedgerKeyPrefix)

	c.UploadJWTSecret = getEnv("UPLOAD_JWT_SECRET", c.UploadJWTSecret)
	c.UploadMaxMB = getEnvInt("UPLOAD_MAX_MB", c.UploadMaxMB)
	c.UploadMaxRows = getEnvInt("UPLOAD_MAX_ROWS", c.UploadMaxRows)
	c.UploadRatePerMin = getEnvInt("UPLOAD_RATE_PER_MIN", c.UploadRatePerMin)
	c.AllowedOrigins = getEnvSlice("ALLOWED_ORIGINS", c.AllowedOrigins)
}

// ValidateLLM checks the settings every classifying command needs.
func (c *Config) ValidateLLM() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderOpenAI:
		// A custom base URL may point at a keyless local endpoint.
		if c.OpenAIAPIKey == "" && c.LLMBaseURL == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.LLMTimeoutSec <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_SEC must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateMailbox checks the settings every mailbox command needs.
func (c *Config) ValidateMailbox() error {
	var errs []error
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); err != nil {
			errs = append(errs, errors.New("either GOOGLE_CREDENTIALS_FILE or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET must be set"))
		}
	}
	switch c.TokenStore {
	case TokenStoreFile:
		if c.TokenFile == "" {
			errs = append(errs, errors.New("TOKEN_FILE is required for the file token store"))
		}
	case TokenStoreKeyring:
	default:
		errs = append(errs, fmt.Errorf("unknown TOKEN_STORE %q", c.TokenStore))
	}
	if c.PollIntervalSec <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL_SEC must be positive"))
	}
	return errors.Join(errs...)
}

// PollInterval returns the delay between two mailbox polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// UploadWriteTimeout bounds an upload response. Rows are classified one at a
// time, so the worst case is every allowed row hitting the model timeout,
// plus a minute to parse the file and mail the report. Zero when rows are
// unlimited.
func (c *Config) UploadWriteTimeout() time.Duration {
	if c.UploadMaxRows <= 0 {
		return 0
	}
	return time.Duration(c.UploadMaxRows)*c.LLMTimeout() + time.Minute
}

// LLMTimeout returns the bound on a single model call.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// LedgerTTL returns how long a processed message id is remembered.
func (c *Config) LedgerTTL() time.Duration {
	return time.Duration(c.LedgerTTLHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets an explicitly empty variable clear a default.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
