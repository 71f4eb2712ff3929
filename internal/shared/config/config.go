package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	Env                string
	DatabaseURL        string
	OpenAIAPIKey       string
	LLMModel           string
	EmbeddingModel     string
	EmbeddingDimension int
	SerperAPIKey       string
	DartAPIKey         string
	CorpusDir          string
	CacheDir           string
	RetrievalTopK      int
	SearchConcurrency  int
	RecentWindowDays   int
	ScriptTokenBudget  int
	JobRetentionHours  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			log.Printf("config: load %s: %v", path, err)
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:                env,
		DatabaseURL:        dbURL,
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		SerperAPIKey:       getEnv("SERPER_API_KEY", ""),
		DartAPIKey:         getEnv("DART_API_KEY", ""),
		CorpusDir:          getEnv("CORPUS_DIR", "./data/reports"),
		CacheDir:           getEnv("CACHE_DIR", "./data/cache"),
		RetrievalTopK:      getEnvInt("RETRIEVAL_TOP_K", 3),
		SearchConcurrency:  getEnvInt("SEARCH_CONCURRENCY", 3),
		RecentWindowDays:   getEnvInt("RECENT_WINDOW_DAYS", 30),
		ScriptTokenBudget:  getEnvInt("SCRIPT_TOKEN_BUDGET", 12000),
		JobRetentionHours:  getEnvInt("JOB_RETENTION_HOURS", 24),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
