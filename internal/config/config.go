package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	AlertLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection  string
	AutoMigrate bool
}

type APIKeys struct {
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider   string // "gemini" or "ollama"
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingMaxInput   int
	OllamaBaseURL       string
	OllamaModel         string // embedding model served by ollama
	LLMProvider         string // "ollama" or "gemini"
	LLMModel            string // e.g. "llama3", "gemini-2.0-flash"
	LLMTemperature      float64
}

type PipelineConfig struct {
	ContextLimit          int
	ModelTimeout          time.Duration
	EmbeddingTimeout      time.Duration
	FinalizeOnModelMarker bool
	VectorIndex           string // "pgvector" or "memory"
	EmbeddingTopic        string
	EmbeddingWorkers      int
	SessionLockTTL        time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			AlertLogFilePath:   getEnv("ALERT_LOG_FILE_PATH", "alerts.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:  getEnv("DB_CONNECTION_STRING", ""),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			EmbeddingMaxInput:   getEnvAsInt("EMBEDDING_MAX_INPUT_CHARS", 8000),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:         getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:         getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:            getEnv("LLM_MODEL", "llama3"),
			LLMTemperature:      getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		},
		Pipeline: PipelineConfig{
			ContextLimit:          getEnvAsInt("PIPELINE_CONTEXT_LIMIT", 5),
			ModelTimeout:          getEnvAsDuration("PIPELINE_MODEL_TIMEOUT", 120*time.Second),
			EmbeddingTimeout:      getEnvAsDuration("PIPELINE_EMBEDDING_TIMEOUT", 15*time.Second),
			FinalizeOnModelMarker: getEnvAsBool("PIPELINE_FINALIZE_ON_MODEL_MARKER", true),
			VectorIndex:           strings.ToLower(getEnv("VECTOR_INDEX", "pgvector")),
			EmbeddingTopic:        getEnv("EMBEDDING_TOPIC", "EMBED_INTAKE_TURN"),
			EmbeddingWorkers:      getEnvAsInt("EMBEDDING_WORKERS", 4),
			SessionLockTTL:        getEnvAsDuration("SESSION_LOCK_TTL", 10*time.Minute),
		},
	}
	cfg.Pipeline.clampLockTTL()
	return cfg
}

// TurnBudget is the longest a turn may hold its session lock: the model call plus the
// query and indexing embedding calls.
func (p PipelineConfig) TurnBudget() time.Duration {
	return p.ModelTimeout + 2*p.EmbeddingTimeout
}

// clampLockTTL keeps the lock cache from expiring a mutex that a running turn still holds.
func (p *PipelineConfig) clampLockTTL() {
	if budget := p.TurnBudget(); p.SessionLockTTL < budget {
		log.Printf("Note: SESSION_LOCK_TTL %s is below the turn budget, using %s", p.SessionLockTTL, budget)
		p.SessionLockTTL = budget
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
