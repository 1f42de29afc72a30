package config

import (
	"os"
	"time"
)

// Server captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr          string
	JWTSigningKey string

	// PostgresDSN switches the agreement and consent stores from in-memory
	// to Postgres when set.
	PostgresDSN string

	// Redis backs the consent persistence collaborator when configured.
	Redis RedisConfig

	// ProviderLatency is the simulated identity-provider round trip used by
	// the in-memory provider. Zero disables the delay.
	ProviderLatency time.Duration

	// SeedDemoUser registers a demo account in the in-memory provider.
	SeedDemoUser bool
}

// RedisConfig holds connection settings for the optional Redis backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("CONSENTDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	latency := 150 * time.Millisecond
	if raw := os.Getenv("PROVIDER_LATENCY"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			latency = d
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ProviderLatency: latency,
		SeedDemoUser:    os.Getenv("SEED_DEMO_USER") != "false",
	}
}
