package db

import (
	"context"
	"errors"
)

// Healthcheck returns a check function compatible with the health package.
// It opens a short-lived connection to the server's default database with the
// given credentials and pings it. A single attempt only: readiness probes
// should report quickly rather than retry.
func Healthcheck(cfg Config, user, password string) func(ctx context.Context) error {
	cfg.RetryAttempts = 1
	return func(ctx context.Context) error {
		pool, err := Connect(ctx, cfg, user, password, "")
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
