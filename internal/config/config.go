package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Tool worker process
	WorkerCommand        string        `json:"worker_command"`
	WorkerArgs           []string      `json:"worker_args"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `json:"reconnect_delay"`
	HandshakeTimeout     time.Duration `json:"handshake_timeout"`
	DisconnectGrace      time.Duration `json:"disconnect_grace"`
	ToolCallTimeout      time.Duration `json:"tool_call_timeout"`
	ModelCallTimeout     time.Duration `json:"model_call_timeout"`

	// Conversation store
	MaxConversations           int           `json:"max_conversations"`
	MaxMessagesPerConversation int           `json:"max_messages_per_conversation"`
	ConversationMaxAge         time.Duration `json:"conversation_max_age"`
	SweepInterval              time.Duration `json:"sweep_interval"`

	// AI / LLM
	LLMProvider      string `json:"llm_provider"`
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url"` // override for custom proxy
	AnthropicModel   string `json:"anthropic_model"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	OpenAIBaseURL    string `json:"openai_base_url"`
	OpenAIModel      string `json:"openai_model"`

	// Security
	EnablePIIDetection bool     `json:"enable_pii_detection"`
	EnableDataMasking  bool     `json:"enable_data_masking"`
	EnableAuditLogging bool     `json:"enable_audit_logging"`
	SensitiveColumns   []string `json:"sensitive_columns"`
	PIIKeywords        []string `json:"pii_keywords"`

	// Tool backends (used by the worker binary)
	DatabaseURL string `json:"database_url"`
	NotesDBPath string `json:"notes_db_path"`
	FilesRoot   string `json:"files_root"`

	WeatherGeocodingURL string `json:"weather_geocoding_url"`
	WeatherForecastURL  string `json:"weather_forecast_url"`

	// Elasticsearch
	ElasticsearchEnabled     bool     `json:"elasticsearch_enabled"`
	ElasticsearchAddresses   []string `json:"elasticsearch_addresses"`
	ElasticsearchUser        string   `json:"elasticsearch_user"`
	ElasticsearchPassword    string   `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool     `json:"elasticsearch_verify_certs"`
	ESAllowedPatterns        []string `json:"es_allowed_patterns"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                       DefaultHost,
		Port:                       DefaultPort,
		Environment:                DefaultEnvironment,
		APIPrefix:                  DefaultAPIPrefix,
		LogLevel:                   DefaultLogLevel,
		CORSOrigins:                DefaultCORSOrigins,
		RateLimitPerMinute:         DefaultRateLimitPerMinute,
		MaxReconnectAttempts:       DefaultMaxReconnectAttempts,
		ReconnectDelay:             DefaultReconnectDelay,
		HandshakeTimeout:           DefaultHandshakeTimeout,
		DisconnectGrace:            DefaultDisconnectGrace,
		ToolCallTimeout:            DefaultToolCallTimeout,
		ModelCallTimeout:           DefaultModelCallTimeout,
		MaxConversations:           DefaultMaxConversations,
		MaxMessagesPerConversation: DefaultMaxMessagesPerConversation,
		ConversationMaxAge:         DefaultConversationMaxAge,
		SweepInterval:              DefaultSweepInterval,
		LLMProvider:                DefaultLLMProvider,
		EnablePIIDetection:         true,
		EnableDataMasking:          true,
		EnableAuditLogging:         true,
		SensitiveColumns:           DefaultSensitiveColumns,
		PIIKeywords:                DefaultPIIKeywords,
		NotesDBPath:                DefaultNotesDBPath,
		FilesRoot:                  DefaultFilesRoot,
		ElasticsearchAddresses:     []string{DefaultElasticsearchAddress},
		ElasticsearchVerifyCerts:   true,
	}

	// Load from JSON config file if specified
	if path := getEnv("TOOLBRIDGE_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("TOOLBRIDGE_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("TOOLBRIDGE_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("TOOLBRIDGE_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("TOOLBRIDGE_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("TOOL_WORKER_CMD", ""); v != "" {
		parts := strings.Fields(v)
		cfg.WorkerCommand = parts[0]
		cfg.WorkerArgs = parts[1:]
	}
	if v := getEnv("MAX_RECONNECT_ATTEMPTS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxReconnectAttempts = n
		}
	}
	if v := getEnv("RECONNECT_DELAY", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReconnectDelay = d
		}
	}
	if v := getEnv("HANDSHAKE_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HandshakeTimeout = d
		}
	}
	if v := getEnv("DISCONNECT_GRACE", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DisconnectGrace = d
		}
	}
	if v := getEnv("TOOL_CALL_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ToolCallTimeout = d
		}
	}
	if v := getEnv("MODEL_CALL_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ModelCallTimeout = d
		}
	}
	if v := getEnv("MAX_CONVERSATIONS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConversations = n
		}
	}
	if v := getEnv("MAX_MESSAGES_PER_CONVERSATION", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxMessagesPerConversation = n
		}
	}
	if v := getEnv("CONVERSATION_MAX_AGE", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ConversationMaxAge = d
		}
	}
	if v := getEnv("SWEEP_INTERVAL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = d
		}
	}
	if v := getEnv("LLM_PROVIDER", ""); v != "" {
		cfg.LLMProvider = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("ANTHROPIC_MODEL", ""); v != "" {
		cfg.AnthropicModel = v
	}
	if v := getEnv("OPENAI_API_KEY", ""); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := getEnv("OPENAI_BASE_URL", ""); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := getEnv("OPENAI_MODEL", ""); v != "" {
		cfg.OpenAIModel = v
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getEnv("NOTES_DB_PATH", ""); v != "" {
		cfg.NotesDBPath = v
	}
	if v := getEnv("FILES_ROOT", ""); v != "" {
		cfg.FilesRoot = v
	}
	if v := getEnv("WEATHER_GEOCODING_URL", ""); v != "" {
		cfg.WeatherGeocodingURL = v
	}
	if v := getEnv("WEATHER_FORECAST_URL", ""); v != "" {
		cfg.WeatherForecastURL = v
	}
	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_ADDRESSES", ""); v != "" {
		cfg.ElasticsearchAddresses = strings.Split(v, ",")
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("ELASTICSEARCH_VERIFY_CERTS", ""); v != "" {
		cfg.ElasticsearchVerifyCerts = v == "true" || v == "1"
	}
	if v := getEnv("ES_ALLOWED_PATTERNS", ""); v != "" {
		cfg.ESAllowedPatterns = strings.Split(v, ",")
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
