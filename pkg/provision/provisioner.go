package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/pgbootstrap/pkg/logger"
	"github.com/dmitrymomot/pgbootstrap/pkg/secrets"
)

// Conn is the subset of [pgxpool.Pool] the provisioner executes against.
// Each connection is used for exactly one role's statement sequence and
// closed exactly once.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// SecretSource resolves credential bundles from the secret store.
type SecretSource interface {
	Resolve(ctx context.Context, secretID string) (secrets.Credential, error)
	ResolveOptional(ctx context.Context, secretID string) (secrets.Credential, bool)
}

// ConnectorFunc opens a connection authenticated with the given credentials.
// An empty database name connects to the server's default administrative database.
type ConnectorFunc func(ctx context.Context, cred secrets.Credential, database string) (Conn, error)

// Result is the outcome reported to the caller. The message is produced
// whenever configuration resolves, regardless of individual statement
// failures: re-running the bootstrap is the recovery mechanism, not error
// propagation.
type Result struct {
	Message string `json:"message"`
}

// Provisioner runs the database bootstrap: it resolves credentials, derives
// the target names, and applies the existence-gated creation and grant
// sequences over three sequential connections (administrative, service-scoped,
// CDC-scoped).
type Provisioner struct {
	cfg     Config
	secrets SecretSource
	open    ConnectorFunc
	log     *slog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger for statement and failure diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provisioner) {
		if log != nil {
			p.log = log
		}
	}
}

// New creates a Provisioner. The connector is invoked lazily, once per
// connection role, always with administrative credentials: service and CDC
// grants are executed as the administrative user because the target roles may
// not have login privileges yet at grant time.
func New(cfg Config, src SecretSource, open ConnectorFunc, opts ...Option) *Provisioner {
	p := &Provisioner{
		cfg:     cfg,
		secrets: src,
		open:    open,
		log:     logger.NewNope(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes a full provisioning pass. Only configuration errors (secret
// resolution, invalid derived identifiers) are returned; statement failures
// on any connection are logged and swallowed, and subsequent connections
// still execute. The run is a pure function of its resolved configuration:
// no state survives between invocations.
func (p *Provisioner) Run(ctx context.Context) (Result, error) {
	log := p.log.With(slog.String("run_id", uuid.NewString()))

	master, err := p.secrets.Resolve(ctx, p.cfg.MasterSecret)
	if err != nil {
		return Result{}, errors.Join(ErrResolveMasterSecret, err)
	}

	service, err := p.secrets.Resolve(ctx, p.cfg.AppSecret)
	if err != nil {
		return Result{}, errors.Join(ErrResolveServiceSecret, err)
	}

	var (
		cdc   secrets.Credential
		cdcOK bool
	)
	if p.cfg.CDCSecret != "" {
		cdc, cdcOK = p.secrets.ResolveOptional(ctx, p.cfg.CDCSecret)
		if cdcOK && !identifierRe.MatchString(cdc.Username) {
			log.WarnContext(ctx, "cdc username is not a valid identifier, skipping cdc provisioning",
				slog.String("username", cdc.Username))
			cdcOK = false
		}
		if !cdcOK {
			log.InfoContext(ctx, "cdc secret is not usable, skipping cdc provisioning")
		}
	}

	target, err := DeriveTarget(p.cfg, service.Username)
	if err != nil {
		return Result{}, err
	}

	log.InfoContext(ctx, "provisioning database",
		slog.String("database", target.Database),
		slog.String("schema", target.Schema),
		slog.String("service_role", service.Username),
		slog.Bool("cdc", cdcOK),
	)

	p.withConn(ctx, log, master, "", "admin", func(conn Conn) error {
		return p.provisionAdmin(ctx, log, conn, target, service, cdc, cdcOK)
	})

	p.withConn(ctx, log, master, target.Database, "service", func(conn Conn) error {
		return applyStatements(ctx, log, conn, serviceStatements(target, service.Username))
	})

	if cdcOK {
		p.withConn(ctx, log, master, target.Database, "cdc", func(conn Conn) error {
			return applyStatements(ctx, log, conn, cdcStatements(target, cdc.Username))
		})
	}

	return Result{
		Message: fmt.Sprintf("Database '%s' usernames are ready for use!", target.Database),
	}, nil
}

// withConn isolates one connection role: open, run the block, close. Closing
// happens on every exit path, and any error (open or statement) is logged
// with the connection name and swallowed so the remaining roles still run.
func (p *Provisioner) withConn(ctx context.Context, log *slog.Logger, cred secrets.Credential, database, role string, fn func(Conn) error) {
	log = log.With(slog.String("connection", role))

	conn, err := p.open(ctx, cred, database)
	if err != nil {
		log.ErrorContext(ctx, "failed to open connection", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if err := fn(conn); err != nil {
		log.ErrorContext(ctx, "provisioning failed", slog.String("error", err.Error()))
	}
}

// provisionAdmin creates the missing server-level objects: the target
// database, the service role, and the CDC role when a usable CDC credential
// was resolved. Every creation is gated by its existence check so re-runs
// never trip over "already exists".
func (p *Provisioner) provisionAdmin(ctx context.Context, log *slog.Logger, conn Conn, target Target, service, cdc secrets.Credential, cdcOK bool) error {
	exists, err := queryExists(ctx, conn, databaseExistsQuery, target.Database)
	if err != nil {
		return fmt.Errorf("check database %s: %w", target.Database, err)
	}
	if exists {
		log.InfoContext(ctx, "database already exists", slog.String("database", target.Database))
	} else {
		if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", target.Database)); err != nil {
			return fmt.Errorf("create database %s: %w", target.Database, err)
		}
		log.InfoContext(ctx, "database created", slog.String("database", target.Database))
	}

	if err := ensureRole(ctx, log, conn, service); err != nil {
		return err
	}
	if cdcOK {
		return ensureRole(ctx, log, conn, cdc)
	}
	return nil
}

// ensureRole creates a login role unless it already exists. The statement is
// never logged verbatim because it embeds the password literal.
func ensureRole(ctx context.Context, log *slog.Logger, conn Conn, cred secrets.Credential) error {
	exists, err := queryExists(ctx, conn, roleExistsQuery, cred.Username)
	if err != nil {
		return fmt.Errorf("check role %s: %w", cred.Username, err)
	}
	if exists {
		log.InfoContext(ctx, "role already exists", slog.String("role", cred.Username))
		return nil
	}

	password := strings.ReplaceAll(cred.Password, "'", "''")
	stmt := fmt.Sprintf("CREATE USER %s WITH ENCRYPTED PASSWORD '%s'", cred.Username, password)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create role %s: %w", cred.Username, err)
	}
	log.InfoContext(ctx, "role created", slog.String("role", cred.Username))
	return nil
}

// applyStatements executes a fixed sequence in order. The first failure
// aborts the remainder of the sequence; partial application is accepted
// because every statement is idempotent and re-running is cheap.
func applyStatements(ctx context.Context, log *slog.Logger, conn Conn, statements []string) error {
	for _, stmt := range statements {
		log.DebugContext(ctx, "executing statement", slog.String("sql", stmt))
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}

func queryExists(ctx context.Context, conn Conn, query, name string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
