package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/pgbootstrap/internal/server"
	"github.com/dmitrymomot/pgbootstrap/pkg/db"
	"github.com/dmitrymomot/pgbootstrap/pkg/health"
	"github.com/dmitrymomot/pgbootstrap/pkg/logger"
	"github.com/dmitrymomot/pgbootstrap/pkg/provision"
	"github.com/dmitrymomot/pgbootstrap/pkg/secrets"
)

type config struct {
	Provision provision.Config
	Secrets   secrets.Config
	DB        db.Config
	Sentry    logger.SentryConfig
	Server    server.Config
}

func main() {
	serve := flag.Bool("serve", false, "serve HTTP instead of running once and exiting")
	flag.Parse()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.NewWithSentry(cfg.Sentry, server.RequestIDExtractor())

	resolver := secrets.New(cfg.Secrets)
	connector := func(ctx context.Context, cred secrets.Credential, database string) (provision.Conn, error) {
		return db.Connect(ctx, cfg.DB, cred.Username, cred.Password, database)
	}
	provisioner := provision.New(cfg.Provision, resolver, connector, provision.WithLogger(log))

	ctx := context.Background()

	if *serve {
		checks := health.Checks{
			"database": func(ctx context.Context) error {
				master, err := resolver.Resolve(ctx, cfg.Provision.MasterSecret)
				if err != nil {
					return err
				}
				return db.Healthcheck(cfg.DB, master.Username, master.Password)(ctx)
			},
		}

		srv := server.New(cfg.Server, provisioner, checks, log)
		if err := srv.Run(ctx); err != nil {
			log.Error("server stopped", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	result, err := provisioner.Run(ctx)
	if err != nil {
		log.Error("provisioning aborted", slog.String("error", err.Error()))
		os.Exit(1)
	}
	_ = json.NewEncoder(os.Stdout).Encode(result)
}
