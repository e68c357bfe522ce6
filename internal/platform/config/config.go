package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	// CallbackBaseURL is the externally reachable base URL identity providers
	// redirect back to. No trailing slash.
	CallbackBaseURL string
	JWTSigningKey   string
}

// Database holds the relational store configuration.
// An empty URL means the service runs on in-memory stores.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the Redis connection configuration.
// An empty URL disables the distributed mint lock and session cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka holds event mirroring configuration.
// Empty brokers disable the outbox relay.
type Kafka struct {
	Brokers string
	Topic   string
}

// Ledger holds the ledger node endpoint configuration.
// An empty NodeURL runs mints against the in-memory stub.
type Ledger struct {
	NodeURL         string
	Token           string
	ContractAddress string
	SubmitTimeout   time.Duration
}

// Providers configures the identity verification adapters. An adapter with
// missing credentials reports itself unavailable instead of failing startup.
type Providers struct {
	StubEnabled     bool
	StubLatency     time.Duration
	StubSuccessRate float64
	StubSeed        int64

	PolygonIDURL     string
	PolygonIDAPIKey  string
	PolygonIDTimeout time.Duration

	IdosURL     string
	IdosToken   string
	IdosTimeout time.Duration
}

// Minting controls the mint pipeline.
type Minting struct {
	// LockTTL bounds the cross-process initiation lock when Redis is
	// configured. It only needs to cover the eligibility-check-then-insert
	// window, not the ledger submission.
	LockTTL time.Duration
}

// Verification controls identity session lifecycle.
type Verification struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Notify controls the realtime event bus.
type Notify struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
}

// Config aggregates all service configuration.
type Config struct {
	Server       Server
	Database     Database
	Redis        RedisConfig
	Kafka        Kafka
	Providers    Providers
	Ledger       Ledger
	Minting      Minting
	Verification Verification
	Notify       Notify
}

// FromEnv builds the full configuration from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envStr("EMBLEM_ADDR", ":8080"),
			Environment:     envStr("EMBLEM_ENV", "development"),
			CallbackBaseURL: envStr("EMBLEM_CALLBACK_BASE_URL", "http://localhost:8080"),
			// Default is for development only - must be overridden in production
			JWTSigningKey: envStr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   envStr("KAFKA_TOPIC", "emblem.badge.events"),
		},
		Providers: Providers{
			StubEnabled:     envBool("PROVIDER_STUB_ENABLED", true),
			StubLatency:     envDuration("PROVIDER_STUB_LATENCY", 150*time.Millisecond),
			StubSuccessRate: envFloat("PROVIDER_STUB_SUCCESS_RATE", 0.9),
			StubSeed:        int64(envInt("PROVIDER_STUB_SEED", 0)),

			PolygonIDURL:     os.Getenv("POLYGON_ID_URL"),
			PolygonIDAPIKey:  os.Getenv("POLYGON_ID_API_KEY"),
			PolygonIDTimeout: envDuration("POLYGON_ID_TIMEOUT", 10*time.Second),

			IdosURL:     os.Getenv("IDOS_URL"),
			IdosToken:   os.Getenv("IDOS_TOKEN"),
			IdosTimeout: envDuration("IDOS_TIMEOUT", 10*time.Second),
		},
		Ledger: Ledger{
			NodeURL:         os.Getenv("LEDGER_NODE_URL"),
			Token:           os.Getenv("LEDGER_TOKEN"),
			ContractAddress: os.Getenv("LEDGER_CONTRACT_ADDRESS"),
			SubmitTimeout:   envDuration("LEDGER_SUBMIT_TIMEOUT", 30*time.Second),
		},
		Minting: Minting{
			LockTTL: envDuration("MINT_LOCK_TTL", 10*time.Second),
		},
		Verification: Verification{
			SessionTTL:    envDuration("SESSION_TTL", 30*time.Minute),
			SweepInterval: envDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Notify: Notify{
			PingInterval: envDuration("WS_PING_INTERVAL", 30*time.Second),
			PongWait:     envDuration("WS_PONG_WAIT", 75*time.Second),
			WriteWait:    envDuration("WS_WRITE_WAIT", 10*time.Second),
			SendBuffer:   envInt("WS_SEND_BUFFER", 32),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
