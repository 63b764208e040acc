package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docverify/pkg/platform/middleware/metadata"
)

// DefaultApprover is recorded when an admin action carries no approver identity.
const DefaultApprover = "0x1234567890123456789012345678901234567890"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Ledger backends.
const (
	LedgerMemory  = "memory"
	LedgerLevelDB = "leveldb"
)

// Config is the full process configuration, resolved once at start-up.
type Config struct {
	Server       Server
	Store        StoreConfig
	Ledger       LedgerConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	LogLevel     slog.Level
	SeedDemoData bool
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	DefaultApprover string
	ShutdownTimeout time.Duration
	// TrustedProxies are the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix
}

// StoreConfig selects the registry store backend.
type StoreConfig struct {
	Backend     string
	DatabaseURL string
	MongoURI    string
	MongoDB     string
}

// LedgerConfig selects the anchoring journal and its retry policy.
type LedgerConfig struct {
	Backend          string
	Path             string
	MaxRetries       uint64
	RetryInitial     time.Duration
	FailureThreshold int
}

// RedisConfig enables the distributed per-license lock when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig enables the audit stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	ClientID   string
	AuditTopic string
	Partitions int32
}

// VerificationConfig drives signed QR verification links.
type VerificationConfig struct {
	SigningKey string
	BaseURL    string
	TokenTTL   time.Duration
}

// RateLimitConfig bounds public traffic per client IP.
type RateLimitConfig struct {
	Enabled     bool
	Submissions int
	Lookups     int
	Window      time.Duration
}

// FromEnv builds the configuration from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: Server{
			Addr:            getEnv("DOCVERIFY_ADDR", ":8080"),
			AdminToken:      os.Getenv("ADMIN_TOKEN"),
			DefaultApprover: getEnv("DEFAULT_APPROVER", DefaultApprover),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			MongoURI:    os.Getenv("MONGO_URI"),
			MongoDB:     getEnv("MONGO_DB", "docverify"),
		},
		Ledger: LedgerConfig{
			Backend: strings.ToLower(getEnv("LEDGER_BACKEND", LedgerMemory)),
			Path:    getEnv("LEDGER_PATH", "data/ledger"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			ClientID:   getEnv("KAFKA_CLIENT_ID", "docverify"),
			AuditTopic: getEnv("AUDIT_TOPIC", "docverify.audit"),
		},
		Verification: VerificationConfig{
			SigningKey: getEnv("VERIFY_SIGNING_KEY", "dev-verify-key-change-in-production"),
			BaseURL:    getEnv("VERIFY_BASE_URL", "http://localhost:8080"),
		},
	}

	var err error
	if cfg.Server.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Server.TrustedProxies, err = metadata.ParseTrustedProxies(splitList(os.Getenv("TRUSTED_PROXIES"))); err != nil {
		return Config{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if cfg.Ledger.MaxRetries, err = uintEnv("LEDGER_MAX_RETRIES", 3); err != nil {
		return Config{}, err
	}
	if cfg.Ledger.RetryInitial, err = durationEnv("LEDGER_RETRY_INITIAL", 100*time.Millisecond); err != nil {
		return Config{}, err
	}
	threshold, err := uintEnv("LEDGER_FAILURE_THRESHOLD", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.Ledger.FailureThreshold = int(threshold)

	poolSize, err := uintEnv("REDIS_POOL_SIZE", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.Redis.PoolSize = int(poolSize)
	cfg.Redis.MinIdleConns = 2
	cfg.Redis.DialTimeout = 5 * time.Second
	cfg.Redis.ReadTimeout = 3 * time.Second
	cfg.Redis.WriteTimeout = 3 * time.Second
	if cfg.Redis.LockTTL, err = durationEnv("REDIS_LOCK_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}

	partitions, err := uintEnv("AUDIT_TOPIC_PARTITIONS", 3)
	if err != nil {
		return Config{}, err
	}
	cfg.Kafka.Partitions = int32(partitions)

	if cfg.Verification.TokenTTL, err = durationEnv("VERIFY_TOKEN_TTL", 90*24*time.Hour); err != nil {
		return Config{}, err
	}

	cfg.RateLimit.Enabled = os.Getenv("RATE_LIMIT_DISABLED") != "true"
	submissions, err := uintEnv("RATE_LIMIT_SUBMISSIONS", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit.Submissions = int(submissions)
	lookups, err := uintEnv("RATE_LIMIT_LOOKUPS", 300)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit.Lookups = int(lookups)
	if cfg.RateLimit.Window, err = durationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.SeedDemoData = os.Getenv("SEED_DEMO_DATA") == "true"

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need to start.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	switch c.Ledger.Backend {
	case LedgerMemory, LedgerLevelDB:
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.Ledger.Backend)
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Verification.SigningKey == "" {
		return fmt.Errorf("VERIFY_SIGNING_KEY must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func uintEnv(key string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
