package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	Version    string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	STTURL    string
	STTAPIKey string
	STTModel  string

	TTSURL    string
	TTSAPIKey string
	TTSVoice  string

	GeminiAPIKey string
	GeminiModel  string

	// MockProviders swaps every external provider for its in-process
	// mock. Useful for local runs without credentials.
	MockProviders bool

	IdleTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		Version:    getEnv("VERSION", "dev"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		STTURL:    getEnv("STT_URL", "wss://api.deepgram.com/v1/listen"),
		STTAPIKey: getEnv("STT_API_KEY", ""),
		STTModel:  getEnv("STT_MODEL", "nova-2"),

		TTSURL:    getEnv("TTS_URL", "wss://api.deepgram.com/v1/speak"),
		TTSAPIKey: getEnv("TTS_API_KEY", ""),
		TTSVoice:  getEnv("TTS_VOICE", "aura-asteria-en"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", ""),

		MockProviders: getEnv("MOCK_PROVIDERS", "false") == "true",

		IdleTimeout: time.Duration(getEnvInt("IDLE_TIMEOUT_SECONDS", 300)) * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
