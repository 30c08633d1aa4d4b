package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	DataDir   string
	StaticDir string

	DatabaseDriver string
	DatabasePath   string
	DatabaseURL    string

	ProductSearchLimit int
	HistoryWindow      int
	DebugInfoEnabled   bool

	ReferralDocPath  string
	ReferralDocS3URI string

	LLMProvider    string
	LLMTimeout     time.Duration
	LLMTemperature float64 // negative keeps the provider default
	LLMMaxTokens   int
	GoogleAPIKey   string
	GeminiModel    string
	BedrockModelID string
	OpenAIAPIKey   string
	OpenAIModel    string

	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	AdminJWTSecret     string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", filepath.Join(executableDir(), "data"))

	return &Config{
		Port:      getEnv("PORT", "8008"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DataDir:   dataDir,
		StaticDir: getEnv("STATIC_DIR", filepath.Join(executableDir(), "static")),

		DatabaseDriver: strings.ToLower(strings.TrimSpace(getEnv("DATABASE_DRIVER", "sqlite3"))),
		DatabasePath:   getEnv("DATABASE_PATH", filepath.Join(dataDir, "CartonCapsData.sqlite")),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		ProductSearchLimit: getEnvAsInt("PRODUCT_SEARCH_LIMIT", 5),
		HistoryWindow:      getEnvAsInt("HISTORY_WINDOW", 10),
		DebugInfoEnabled:   getEnvAsBool("DEBUG_INFO_ENABLED", true),

		ReferralDocPath:  getEnv("REFERRAL_DOC_PATH", filepath.Join(dataDir, "CartonCapsReferralFAQs.pdf")),
		ReferralDocS3URI: getEnv("REFERRAL_DOC_S3_URI", ""),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", -1),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 0),
		GoogleAPIKey:   getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
	}
}

// executableDir resolves the directory of the running binary so data files
// resolve relative to the service rather than the caller's working directory.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
