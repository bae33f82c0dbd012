package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	AIAPIKey     string
	EmbedModel   string
	EmbedDim     int

	RedisAddr       string
	RedisPassword   string
	JobStream       string
	ConsumerGroup   string
	ConsumerName    string
	ProgressChannel string

	ChunkSize         int
	ChunkOverlap      int
	EmbedBatchSize    int
	WriterConcurrency int
	MinContentLen     int
	MaxCrawlDepth     int

	Port     string
	LogLevel string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "kbforge-files"),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:     getEnvInt("EMBED_DIM", 768),

		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		JobStream:       getEnv("JOB_STREAM", "kbforge:ingest-jobs"),
		ConsumerGroup:   getEnv("CONSUMER_GROUP", "ingest-workers"),
		ConsumerName:    getEnv("CONSUMER_NAME", hostnameOr("worker-1")),
		ProgressChannel: getEnv("PROGRESS_CHANNEL", "kbforge:ingest-progress"),

		ChunkSize:         getEnvInt("CHUNK_SIZE", 1200),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize:    getEnvInt("EMBED_BATCH_SIZE", 12),
		WriterConcurrency: getEnvInt("WRITER_CONCURRENCY", 2),
		MinContentLen:     getEnvInt("MIN_CONTENT_LEN", 20),
		MaxCrawlDepth:     getEnvInt("MAX_CRAWL_DEPTH", 2),

		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
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

func hostnameOr(def string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return def
}
