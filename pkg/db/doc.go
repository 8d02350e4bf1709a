// Package db opens PostgreSQL connections for provisioning runs.
//
// This package wraps [github.com/jackc/pgx/v5/pgxpool] with retry logic and
// DSN construction tailored to the bootstrap workflow: every connection is
// authenticated with administrative credentials, and the target database is
// chosen per connection (empty for the server's default administrative
// database, the derived application database otherwise). The port is fixed
// at 5432.
//
// # Configuration
//
// All settings are loaded from environment variables:
//
//	RDS_HOST            - Postgres server host (required)
//	RDS_SSL_MODE        - SSL mode for all connections (default: require)
//	RDS_RETRY_ATTEMPTS  - Connection retry attempts (default: 3)
//	RDS_RETRY_INTERVAL  - Base retry interval (default: 5s)
//	RDS_MAX_OPEN_CONNS  - Maximum open connections per pool (default: 2)
//	RDS_MIN_CONNS       - Minimum idle connections per pool (default: 1)
//
// # Usage
//
//	pool, err := db.Connect(ctx, cfg, master.Username, master.Password, "")
//	if err != nil {
//		// handle
//	}
//	defer pool.Close()
//
// Errors are wrapped using [errors.Join] to preserve the original error context.
package db
