package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration

	// Kafka
	KafkaBrokers        []string
	KafkaGroupID        string
	SymptomTopic        string
	CorrelationTopic    string
	CorrelationDLQTopic string
	ConsumerEnabled     bool

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Gateway
	GatewayRequestTimeout time.Duration
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
	DefaultTenant         string

	// Correlation engine
	ReportTimezone         string
	SensitivityCatalogPath string
	TriggerDedupeTTL       time.Duration
	TriggerRetryAttempts   int
	TriggerRetryBackoff    time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "nourish"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "nourish123"),
		PostgresDB:       getEnv("POSTGRES_DB", "nourish"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getIntEnv("REDIS_DB", 0),
		RedisPoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
		RedisMinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
		RedisDialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 2*time.Second),
		RedisWriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 2*time.Second),

		KafkaBrokers:        getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "correlation-service"),
		SymptomTopic:        getEnv("KAFKA_SYMPTOM_TOPIC", "symptom-events"),
		CorrelationTopic:    getEnv("KAFKA_CORRELATION_TOPIC", "symptom-correlations"),
		CorrelationDLQTopic: getEnv("KAFKA_CORRELATION_DLQ_TOPIC", "symptom-events-dlq"),
		ConsumerEnabled:     getBoolEnv("CORRELATION_CONSUMER_ENABLED", true),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "nourish-clinic"),
		JWTAudience: getEnv("JWT_AUDIENCE", "nourish-api"),
		JWTTTL:      getDuration("JWT_TTL", time.Hour),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		GatewayRequestTimeout: getDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
		DefaultTenant:         getEnv("DEFAULT_TENANT", ""),

		ReportTimezone:         getEnv("REPORT_TIMEZONE", "UTC"),
		SensitivityCatalogPath: getEnv("SENSITIVITY_CATALOG_PATH", ""),
		TriggerDedupeTTL:       getDuration("TRIGGER_DEDUPE_TTL", 10*time.Minute),
		TriggerRetryAttempts:   getIntEnv("TRIGGER_RETRY_ATTEMPTS", 5),
		TriggerRetryBackoff:    getDuration("TRIGGER_RETRY_BACKOFF", 200*time.Millisecond),
	}
}

// Location resolves ReportTimezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
