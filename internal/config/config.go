package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. It is constructed
// once at process start and passed explicitly to every component; the
// business values and thresholds it carries are read-only inputs.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Worker    WorkerConfig
	Business  BusinessConfig
	Guardrail GuardrailConfig
	Targets   TargetConfig
	LogLevel  string
	// CatalogPath optionally points at an external JSON service catalog;
	// empty means the built-in default catalog.
	CatalogPath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	URL             string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	OllamaBaseURL    string
	OllamaModel      string
	OpenRouterAPIKey string
	OpenRouterModel  string
	DefaultProvider  string // "openai", "anthropic", "ollama", or "openrouter"
	Model            string
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	MaxAttempts      int
}

// WorkerConfig holds evaluation worker configuration.
type WorkerConfig struct {
	Concurrency   int
	BatchSize     int
	ReportWindow  int
	StreamName    string
	ConsumerGroup string
	ConsumerName  string
}

// BusinessConfig holds business-specific values surfaced in agent replies.
type BusinessConfig struct {
	Name               string
	HoursWeekday       string
	HoursWeekend       string
	ServiceArea        string
	EmergencyLine      string
	CallbackSLAMinutes int
}

// GuardrailConfig holds thresholds for escalation and guardrail triggers.
type GuardrailConfig struct {
	ConfusionThreshold    int
	MaxSlotRetries        int
	MaxSessionErrors      int
	MaxToolAttempts       int
	HallucinationBlocks   bool
	SlowResponseThreshold time.Duration
	FallbackUtterance     string
	// ClaimFallbackUtterance replaces a reply blocked for an unverified
	// claim.
	ClaimFallbackUtterance string
}

// TargetConfig holds evaluation targets reported alongside KPIs.
type TargetConfig struct {
	SuccessRate     float64
	ContainmentRate float64
	EscalationRate  float64
	MaxTurns        int
	SlotFillRate    float64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 8080)),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "voice_orchestrator"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Redis: loadRedisConfig(),
		LLM: LLMConfig{
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.1:8b"),
			OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
			OpenRouterModel:  getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			Model:            getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:        getEnvAsInt("LLM_MAX_TOKENS", 1024),
			Timeout:          getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			MaxAttempts:      getEnvAsInt("LLM_MAX_ATTEMPTS", 2),
		},
		Worker: WorkerConfig{
			Concurrency:   getEnvAsInt("WORKER_CONCURRENCY", 10),
			BatchSize:     getEnvAsInt("WORKER_BATCH_SIZE", 10),
			ReportWindow:  getEnvAsInt("WORKER_REPORT_WINDOW", 25),
			StreamName:    getEnv("WORKER_STREAM_NAME", "transcripts"),
			ConsumerGroup: getEnv("WORKER_CONSUMER_GROUP", "eval-workers"),
			ConsumerName:  getEnv("WORKER_CONSUMER_NAME", "worker-1"),
		},
		Business: BusinessConfig{
			Name:               getEnv("BUSINESS_NAME", "Reliable Home Services"),
			HoursWeekday:       getEnv("BUSINESS_HOURS_WEEKDAY", "Monday to Friday 8am to 6pm"),
			HoursWeekend:       getEnv("BUSINESS_HOURS_WEEKEND", "Saturday 9am to 2pm, closed Sunday"),
			ServiceArea:        getEnv("SERVICE_AREA", "Greater Melbourne metro area"),
			EmergencyLine:      getEnv("EMERGENCY_LINE", "1300-555-000"),
			CallbackSLAMinutes: getEnvAsInt("CALLBACK_SLA_MINUTES", 30),
		},
		Guardrail: GuardrailConfig{
			ConfusionThreshold:    getEnvAsInt("CONFUSION_THRESHOLD", 3),
			MaxSlotRetries:        getEnvAsInt("MAX_SLOT_RETRIES", 3),
			MaxSessionErrors:      getEnvAsInt("MAX_SESSION_ERRORS", 3),
			MaxToolAttempts:       getEnvAsInt("MAX_TOOL_ATTEMPTS", 2),
			HallucinationBlocks:   getEnvAsBool("HALLUCINATION_BLOCKS", true),
			SlowResponseThreshold: getEnvAsDuration("SLOW_RESPONSE_THRESHOLD", 8*time.Second),
			FallbackUtterance: getEnv("FALLBACK_UTTERANCE",
				"I'm sorry, I didn't catch that properly. Could you say that again?"),
			ClaimFallbackUtterance: getEnv("CLAIM_FALLBACK_UTTERANCE",
				"I can share our standard pricing and availability, and the technician can confirm the details on site."),
		},
		Targets: TargetConfig{
			SuccessRate:     getEnvAsFloat("TARGET_SUCCESS_RATE", 0.70),
			ContainmentRate: getEnvAsFloat("TARGET_CONTAINMENT_RATE", 0.85),
			EscalationRate:  getEnvAsFloat("TARGET_ESCALATION_RATE", 0.15),
			MaxTurns:        getEnvAsInt("TARGET_MAX_TURNS", 16),
			SlotFillRate:    getEnvAsFloat("TARGET_SLOT_FILL_RATE", 0.80),
		},
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CatalogPath: getEnv("CATALOG_PATH", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0.0 and 2.0, got %v", c.LLM.Temperature)
	}
	if c.Guardrail.ConfusionThreshold < 1 {
		return fmt.Errorf("CONFUSION_THRESHOLD must be >= 1, got %d", c.Guardrail.ConfusionThreshold)
	}
	if c.Guardrail.MaxSlotRetries < 1 {
		return fmt.Errorf("MAX_SLOT_RETRIES must be >= 1, got %d", c.Guardrail.MaxSlotRetries)
	}
	if c.Guardrail.MaxSessionErrors < 1 {
		return fmt.Errorf("MAX_SESSION_ERRORS must be >= 1, got %d", c.Guardrail.MaxSessionErrors)
	}
	if c.Guardrail.SlowResponseThreshold <= 0 {
		return fmt.Errorf("SLOW_RESPONSE_THRESHOLD must be > 0, got %v", c.Guardrail.SlowResponseThreshold)
	}
	if c.Business.CallbackSLAMinutes < 1 {
		return fmt.Errorf("CALLBACK_SLA_MINUTES must be >= 1, got %d", c.Business.CallbackSLAMinutes)
	}
	for name, rate := range map[string]float64{
		"TARGET_SUCCESS_RATE":     c.Targets.SuccessRate,
		"TARGET_CONTAINMENT_RATE": c.Targets.ContainmentRate,
		"TARGET_ESCALATION_RATE":  c.Targets.EscalationRate,
		"TARGET_SLOT_FILL_RATE":   c.Targets.SlotFillRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %v", name, rate)
		}
	}
	if c.Targets.MaxTurns < 1 {
		return fmt.Errorf("TARGET_MAX_TURNS must be >= 1, got %d", c.Targets.MaxTurns)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Database + "?sslmode=disable"
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func (c *RedisConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("Redis host is empty. Set REDIS_URL or REDIS_HOST environment variable")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid Redis port: %d", c.Port)
	}
	return nil
}

func loadRedisConfig() RedisConfig {
	redisURL := getEnv("REDIS_URL", "")
	if redisURL != "" {
		return parseRedisURL(redisURL)
	}

	return RedisConfig{
		Host:     getEnv("REDISHOST", getEnv("REDIS_HOST", "")),
		Port:     getEnvAsInt("REDISPORT", getEnvAsInt("REDIS_PORT", 6379)),
		Password: getEnv("REDISPASSWORD", getEnv("REDIS_PASSWORD", "")),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
}

func parseRedisURL(redisURL string) RedisConfig {
	cfg := RedisConfig{
		URL:  redisURL,
		Port: 6379,
		DB:   0,
	}

	if !strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
		redisURL = "redis://" + redisURL
		cfg.URL = redisURL
	}

	u, err := url.Parse(redisURL)
	if err != nil {
		return cfg
	}

	if u.User != nil {
		cfg.Password, _ = u.User.Password()
	}

	cfg.Host = u.Hostname()
	if u.Port() != "" {
		if port, err := strconv.Atoi(u.Port()); err == nil {
			cfg.Port = port
		}
	}

	if u.Path != "" {
		dbStr := strings.TrimPrefix(u.Path, "/")
		if dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				cfg.DB = db
			}
		}
	}

	return cfg
}

// Addr returns the server address.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
