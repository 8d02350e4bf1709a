package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnString builds a connection URL for the given role credentials.
// When database is empty the path is omitted and the server routes the
// connection to its default administrative database.
func ConnString(cfg Config, user, password, database string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, Port),
	}
	if database != "" {
		u.Path = "/" + database
	}

	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()

	return u.String()
}

// Connect establishes a PostgreSQL connection pool with retry logic.
// Uses exponential backoff to handle transient network issues without
// overwhelming the database during environment bring-up.
func Connect(ctx context.Context, cfg Config, user, password, database string) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(ConnString(cfg, user, password, database))
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MinConns

	// Exponential backoff: attempt 1 waits RetryInterval, attempt 2 waits 2x, attempt 3 waits 3x.
	// This prevents thundering herd problems when multiple services restart simultaneously.
	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		conn, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err())
			case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
			}
			continue
		}

		// Verify connection with actual database ping to catch authentication and permission issues.
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err())
			case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
			}
			continue
		}

		return conn, nil
	}

	return nil, ErrFailedToOpenDBConnection
}
