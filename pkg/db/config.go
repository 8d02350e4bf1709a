package db

import "time"

// Port is the fixed Postgres port. Every RDS instance we provision listens
// on the default port; it is deliberately not configurable.
const Port = 5432

// Config holds PostgreSQL server connection parameters.
// All fields are populated from environment variables for deployment convenience.
// Role credentials and the target database are supplied per connection, not here:
// a single provisioning run opens connections against different databases on
// the same server.
type Config struct {
	// Postgres server host (RDS endpoint).
	Host string `env:"RDS_HOST,required"`

	// SSL mode for all connections. RDS enforces TLS in most environments.
	SSLMode string `env:"RDS_SSL_MODE" envDefault:"require"`

	// Retry configuration for handling transient network issues during startup.
	// 3 attempts with exponential backoff handles most temporary connection problems.
	RetryAttempts int           `env:"RDS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"RDS_RETRY_INTERVAL" envDefault:"5s"`

	// Pool limits stay small: each connection runs a short, strictly
	// sequential DDL/DCL sequence and is closed right after.
	MaxOpenConns int32 `env:"RDS_MAX_OPEN_CONNS" envDefault:"2"`
	MinConns     int32 `env:"RDS_MIN_CONNS" envDefault:"1"`
}
