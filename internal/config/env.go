package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	VectorBackendPgVector = "pgvector"
	VectorBackendQdrant   = "qdrant"
	VectorBackendMemory   = "memory"
)

type Config struct {
	Environment string
	Port        string

	DatabaseURL string
	SslCertPath string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	JWTSecret     string
	TokenTTLHours int

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	EmbedMaxRetries  int
	EmbedRPS         float64
	EmbedConcurrency int

	VectorBackend    string
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string

	ChunkSize     int
	ChunkOverlap  int
	RetrievalTopK int
	IngestWorkers int
	MaxFileSize   int64

	AllowedOrigins       []string
	ChatHistoryPerMinute int

	OTLPEndpoint    string
	TraceSampleRate float64
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "docqa-docs"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTLHours: getEnvInt("TOKEN_TTL_HOURS", 24),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),

		EmbedMaxRetries:  getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedRPS:         getEnvFloat("EMBED_RPS", 10),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", VectorBackendPgVector)),
		QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "document_entries"),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 4000),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 5),
		RetrievalTopK: getEnvInt("RETRIEVAL_TOP_K", 3),
		IngestWorkers: getEnvInt("INGEST_WORKERS", 2),
		MaxFileSize:   int64(getEnvInt("MAX_FILE_SIZE", 10<<20)),

		AllowedOrigins:       getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		ChatHistoryPerMinute: getEnvInt("CHAT_HISTORY_PER_MINUTE", 5),

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceSampleRate: getEnvFloat("OTEL_TRACE_SAMPLE_RATE", 1),
	}

	return cfg
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, errors.New("EMBED_DIM must be positive"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, errors.New("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)"))
	}
	if c.RetrievalTopK <= 0 {
		errs = append(errs, errors.New("RETRIEVAL_TOP_K must be positive"))
	}
	switch c.VectorBackend {
	case VectorBackendPgVector, VectorBackendMemory:
	case VectorBackendQdrant:
		if c.QdrantHost == "" || c.QdrantCollection == "" {
			errs = append(errs, errors.New("QDRANT_HOST and QDRANT_COLLECTION required for qdrant backend"))
		}
	default:
		errs = append(errs, errors.New("VECTOR_BACKEND must be pgvector, qdrant or memory"))
	}
	return errors.Join(errs...)
}

// ObjectStorageEnabled is true when raw uploads can be kept for re-indexing.
func (c *Config) ObjectStorageEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a number, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
