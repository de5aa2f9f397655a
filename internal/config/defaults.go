package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = 500 * time.Millisecond
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultDisconnectGrace      = 3 * time.Second
	DefaultToolCallTimeout      = 30 * time.Second
	DefaultModelCallTimeout     = 60 * time.Second

	DefaultMaxConversations           = 100
	DefaultMaxMessagesPerConversation = 50
	DefaultConversationMaxAge         = 24 * time.Hour
	DefaultSweepInterval              = 5 * time.Minute

	DefaultLLMProvider = "anthropic"

	DefaultNotesDBPath = "notes.db"
	DefaultFilesRoot   = "./files"

	DefaultElasticsearchAddress = "http://localhost:9200"

	DefaultMaxPromptLength = 2000

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "pin", "secret", "private_key",
	"access token", "api key",
}
