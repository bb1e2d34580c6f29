package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	LogLevel string

	CorpusPath           string
	CorpusManifestPath   string
	FlowConfigPath       string
	MergeConfigPath      string
	DefaultQuestionsPath string
	ExportPath           string

	PostgresDSN string

	NATSURL     string
	NATSSubject string
	// QuestionTimeout bounds one worker answer; requesters wait a little longer.
	QuestionTimeout time.Duration

	Provider string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIGenModel   string
	OpenAIEmbedModel string

	SemanticEnabled bool
	SynthesisMode   string

	ChunkSize        int
	ChunkOverlap     int
	RetrievalTopK    int
	RetrievalTimeout time.Duration
	ProviderTimeout  time.Duration
	// GenerationTimeout bounds one generation attempt; embeddings use ProviderTimeout.
	GenerationTimeout time.Duration
	EmbedBatchSize    int
	EmbedWorkers      int
	QueryCacheSize    int

	ProviderRetryAttempts  int
	ProviderBreakerEnabled bool

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	MetricsPort string
}

// LoadDotEnv loads the first .env file found among paths, or ./.env when
// none are given. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		CorpusPath:           mustEnv("CORPUS_PATH", "./data/corpus"),
		CorpusManifestPath:   mustEnv("CORPUS_MANIFEST_PATH", ""),
		FlowConfigPath:       mustEnv("FLOW_CONFIG_PATH", "./configs/flow.yaml"),
		MergeConfigPath:      mustEnv("MERGE_CONFIG_PATH", ""),
		DefaultQuestionsPath: mustEnv("DEFAULT_QUESTIONS_PATH", "./configs/questions.yaml"),
		ExportPath:           mustEnv("EXPORT_PATH", "./data/exports"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:         mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:     mustEnv("NATS_SUBJECT", "inquiry.questions"),
		QuestionTimeout: mustEnvDuration("QUESTION_TIMEOUT", 2*time.Minute),

		Provider: mustEnv("PROVIDER", "ollama"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     mustEnv("OPENAI_API_KEY", ""),
		OpenAIGenModel:   mustEnv("OPENAI_GEN_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		SemanticEnabled: mustEnvBool("SEMANTIC_ENABLED", true),
		SynthesisMode:   mustEnv("SYNTHESIS_MODE", "extraction"),

		ChunkSize:         mustEnvInt("CHUNK_SIZE", 900),
		ChunkOverlap:      mustEnvInt("CHUNK_OVERLAP", 150),
		RetrievalTopK:     mustEnvInt("RETRIEVAL_TOP_K", 5),
		RetrievalTimeout:  mustEnvDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
		ProviderTimeout:   mustEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		GenerationTimeout: mustEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
		EmbedBatchSize:    mustEnvInt("EMBED_BATCH_SIZE", 32),
		EmbedWorkers:      mustEnvInt("EMBED_WORKERS", 4),
		QueryCacheSize:    mustEnvInt("QUERY_CACHE_SIZE", 256),

		ProviderRetryAttempts:  mustEnvInt("PROVIDER_RETRY_ATTEMPTS", 3),
		ProviderBreakerEnabled: mustEnvBool("PROVIDER_BREAKER_ENABLED", true),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 32),

		MetricsPort: mustEnv("METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
