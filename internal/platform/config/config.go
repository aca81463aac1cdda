package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "taxcase/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// AdminAPIToken guards operator endpoints. Empty disables them.
	AdminAPIToken string

	// AdminRoles are the role spellings treated as administrators.
	AdminRoles []string

	PrincipalCacheTTL  time.Duration
	OutboxPollInterval time.Duration
	ShutdownTimeout    time.Duration

	SeedDirectory bool
}

// RedisConfig configures the principal cache connection. An empty URL
// disables the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures notification and audit publishing. No brokers means
// notifications are only logged.
type KafkaConfig struct {
	Brokers       []string
	RevisionTopic string
	AuditTopic    string
	Partitions    int32
	Replication   int16
}

const defaultDevSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	env := envOr("ENVIRONMENT", "development")
	return Server{
		Addr:        envOr("TAXCASE_ADDR", ":8080"),
		Environment: env,
		LogLevel:    envOr("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       envList("KAFKA_BROKERS", nil),
			RevisionTopic: envOr("KAFKA_REVISION_TOPIC", "revision-events"),
			AuditTopic:    envOr("KAFKA_AUDIT_TOPIC", "audit-events"),
			Partitions:    int32(envInt("KAFKA_TOPIC_PARTITIONS", 3)),
			Replication:   int16(envInt("KAFKA_TOPIC_REPLICATION", 1)),
		},
		// Use a default for development - should be overridden in production
		JWTSigningKey:      envOr("JWT_SIGNING_KEY", defaultDevSigningKey),
		JWTIssuer:          envOr("JWT_ISSUER", "taxcase"),
		JWTAudience:        envOr("JWT_AUDIENCE", "taxcase-api"),
		AdminAPIToken:      os.Getenv("ADMIN_API_TOKEN"),
		AdminRoles:         envList("ADMIN_ROLES", []string{"admin", "administrator", "super_admin"}),
		PrincipalCacheTTL:  envDuration("PRINCIPAL_CACHE_TTL", 5*time.Minute),
		OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		ShutdownTimeout:    envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		SeedDirectory:      envBool("SEED_DIRECTORY", env == "development"),
	}
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// UsesDevSigningKey reports whether JWT_SIGNING_KEY was left unset.
func (s Server) UsesDevSigningKey() bool {
	return s.JWTSigningKey == defaultDevSigningKey
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envList(key string, fallback []string) []string {
	out := platformstrings.DedupeAndTrim(strings.Split(os.Getenv(key), ","))
	if len(out) == 0 {
		return fallback
	}
	return out
}
