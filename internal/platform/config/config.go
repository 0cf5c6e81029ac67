package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  string
	JWTSigningKey string
	TokenTTL      time.Duration

	// Template admission policy.
	AdmissionThreshold      float64
	MaxTemplatesPerSubject  int
	MaxTemplatesPerModality int
	TemplateTTL             time.Duration
}

// FromEnv builds a Server config from environment variables. Unset values
// fall back to the defaults the access-control deployment ships with.
func FromEnv() Server {
	cfg := Server{
		Addr:                    envOr("BIOGATE_ADDR", ":8080"),
		PostgresDSN:             os.Getenv("BIOGATE_POSTGRES_DSN"),
		RedisURL:                os.Getenv("BIOGATE_REDIS_URL"),
		KafkaBrokers:            os.Getenv("BIOGATE_KAFKA_BROKERS"),
		JWTSigningKey:           envOr("BIOGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:                15 * time.Minute,
		AdmissionThreshold:      0.65,
		MaxTemplatesPerSubject:  10,
		MaxTemplatesPerModality: 3,
		TemplateTTL:             365 * 24 * time.Hour,
	}

	if v := os.Getenv("BIOGATE_ADMISSION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.AdmissionThreshold = f
		}
	}
	if v := os.Getenv("BIOGATE_MAX_TEMPLATES_PER_SUBJECT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTemplatesPerSubject = n
		}
	}
	if v := os.Getenv("BIOGATE_MAX_TEMPLATES_PER_MODALITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTemplatesPerModality = n
		}
	}

	return cfg
}

// KafkaBrokerList splits the comma-separated broker setting. Empty when no
// brokers are configured.
func (s Server) KafkaBrokerList() []string {
	if s.KafkaBrokers == "" {
		return nil
	}
	brokers := strings.Split(s.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
