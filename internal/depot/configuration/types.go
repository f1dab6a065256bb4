package configuration

import (
	"time"
)

type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Connection      map[string]string
}

type RedisConfig struct {
	Addr     string
	Password string
	Db       int
}

// RateLimitConfig bounds claim call frequency per identity. Backend selects
// the limiter implementation: "memory" for a process-local fixed window,
// "redis" for a shared window across instances.
type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	Backend string
	Redis   RedisConfig
}

type IngestConfig struct {
	// MaxBoundParams is the bind-parameter ceiling of a single statement on
	// the backing store's wire protocol.
	MaxBoundParams int
	// BatchSize is the preferred rows-per-statement; it is clamped down when
	// it would exceed the parameter ceiling for a dataset's column count.
	BatchSize int
}

type DepotConfiguration struct {
	Postgres  PostgresConfig
	RateLimit RateLimitConfig
	Ingest    IngestConfig
}
