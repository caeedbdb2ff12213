package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	LiveKit   LiveKitConfig
	Interview InterviewConfig
	AWS       AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/financebro?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// LiveKitConfig holds LiveKit credentials and agent settings. When credentials
// are absent, session provisioning runs in stub mode (no real rooms).
type LiveKitConfig struct {
	URL         string // wss:// signalling URL handed to clients
	RESTURL     string // https:// REST URL; derived from URL when empty
	APIKey      string
	APISecret   string
	AgentName   string // named agent dispatched into interview rooms
	TokenTTLSec int
}

// Configured reports whether real LiveKit credentials are present.
func (c LiveKitConfig) Configured() bool {
	return c.URL != "" && c.APIKey != "" && c.APISecret != ""
}

// RESTEndpoint returns the REST URL, deriving it from the ws URL if not set.
func (c LiveKitConfig) RESTEndpoint() string {
	if c.RESTURL != "" {
		return c.RESTURL
	}
	switch {
	case strings.HasPrefix(c.URL, "wss://"):
		return "https://" + strings.TrimPrefix(c.URL, "wss://")
	case strings.HasPrefix(c.URL, "ws://"):
		return "http://" + strings.TrimPrefix(c.URL, "ws://")
	}
	return c.URL
}

// InterviewConfig holds interview session pacing and scoring settings.
type InterviewConfig struct {
	QuestionIntervalSec int // seconds between question advances
	DefaultDurationMin  int // session length when the caller does not specify one
	ScoreBandMin        float64
	ScoreBandMax        float64
	ProvisionTimeoutSec int // timeout on the provisioning call
	CompleteTimeoutSec  int // timeout on the completion transaction
}

// AWSConfig holds AWS credentials and the transcript archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TranscriptsBucket    string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/financebro?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "financebro"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		LiveKit: LiveKitConfig{
			URL:         getEnv("LIVEKIT_URL", ""),
			RESTURL:     getEnv("LIVEKIT_REST_URL", ""),
			APIKey:      getEnv("LIVEKIT_API_KEY", ""),
			APISecret:   getEnv("LIVEKIT_API_SECRET", ""),
			AgentName:   getEnv("LIVEKIT_AGENT_NAME", "finance-coach"),
			TokenTTLSec: getEnvInt("LIVEKIT_TOKEN_TTL_SEC", 3600),
		},
		Interview: InterviewConfig{
			QuestionIntervalSec: getEnvInt("INTERVIEW_QUESTION_INTERVAL_SEC", 30),
			DefaultDurationMin:  getEnvInt("INTERVIEW_DEFAULT_DURATION_MIN", 20),
			ScoreBandMin:        getEnvFloat("INTERVIEW_SCORE_BAND_MIN", 70),
			ScoreBandMax:        getEnvFloat("INTERVIEW_SCORE_BAND_MAX", 90),
			ProvisionTimeoutSec: getEnvInt("INTERVIEW_PROVISION_TIMEOUT_SEC", 20),
			CompleteTimeoutSec:  getEnvInt("INTERVIEW_COMPLETE_TIMEOUT_SEC", 20),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TranscriptsBucket:    getEnv("AWS_S3_TRANSCRIPTS_BUCKET", "financebro-transcripts"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
	}
	if cfg.Interview.ScoreBandMax < cfg.Interview.ScoreBandMin {
		return nil, fmt.Errorf("config: score band max (%v) below min (%v)", cfg.Interview.ScoreBandMax, cfg.Interview.ScoreBandMin)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
