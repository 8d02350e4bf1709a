package provision_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgbootstrap/pkg/provision"
	"github.com/dmitrymomot/pgbootstrap/pkg/secrets"
)

type stubSecrets struct {
	required map[string]secrets.Credential
	optional map[string]secrets.Credential
}

func (s *stubSecrets) Resolve(_ context.Context, secretID string) (secrets.Credential, error) {
	cred, ok := s.required[secretID]
	if !ok {
		return secrets.Credential{}, secrets.ErrSecretNotFound
	}
	return cred, nil
}

func (s *stubSecrets) ResolveOptional(_ context.Context, secretID string) (secrets.Credential, bool) {
	cred, ok := s.optional[secretID]
	return cred, ok
}

// countingConn wraps a mock pool to assert the close-exactly-once discipline.
type countingConn struct {
	pgxmock.PgxPoolIface
	closes *int
}

func (c *countingConn) Close() {
	*c.closes++
	c.PgxPoolIface.Close()
}

// stubConnector hands out pre-arranged mock pools in open order and records
// which database and credentials each connection was opened with.
type stubConnector struct {
	t      *testing.T
	pools  []pgxmock.PgxPoolIface
	opens  []string // database names in open order ("" = administrative)
	users  []string
	closes []*int
}

func (c *stubConnector) Open(_ context.Context, cred secrets.Credential, database string) (provision.Conn, error) {
	c.t.Helper()
	require.NotEmpty(c.t, c.pools, "unexpected connection open for database %q", database)

	pool := c.pools[0]
	c.pools = c.pools[1:]
	c.opens = append(c.opens, database)
	c.users = append(c.users, cred.Username)

	closes := new(int)
	c.closes = append(c.closes, closes)
	return &countingConn{PgxPoolIface: pool, closes: closes}, nil
}

func newPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	return pool
}

func expectExists(mock pgxmock.PgxPoolIface, query, name string, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(name).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectSequence(mock pgxmock.PgxPoolIface, statements []string) {
	for _, stmt := range statements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).
			WillReturnResult(pgxmock.NewResult("OK", 0))
	}
}

const (
	databaseExistsQuery = `SELECT EXISTS (SELECT FROM pg_catalog.pg_database WHERE lower(datname) = lower($1))`
	roleExistsQuery     = `SELECT EXISTS (SELECT FROM pg_roles WHERE rolname = $1)`
)

// myappServiceStatements is the full grant sequence for database "myapp" and
// schema "myapp_user", spelled out literally so a reordering or rewording of
// any statement fails the test.
func myappServiceStatements() []string {
	return []string{
		"CREATE SCHEMA IF NOT EXISTS myapp_user",
		"CREATE EXTENSION IF NOT EXISTS pg_trgm SCHEMA myapp_user CASCADE",
		"CREATE EXTENSION IF NOT EXISTS intarray SCHEMA myapp_user CASCADE",
		"GRANT CONNECT ON DATABASE myapp TO myapp_user",
		"GRANT CREATE ON DATABASE myapp TO myapp_user",
		"CREATE SCHEMA IF NOT EXISTS myapp_user",
		"REVOKE CREATE ON SCHEMA public FROM PUBLIC",
		"REVOKE ALL ON DATABASE myapp FROM PUBLIC",
		"GRANT USAGE, CREATE ON SCHEMA myapp_user TO myapp_user",
		"ALTER DEFAULT PRIVILEGES IN SCHEMA myapp_user GRANT ALL PRIVILEGES ON TABLES TO myapp_user",
		"GRANT ALL PRIVILEGES on DATABASE myapp to myapp_user",
		"ALTER DATABASE myapp OWNER TO myapp_user",
	}
}

func myappCDCStatements() []string {
	return []string{
		"GRANT CONNECT ON DATABASE myapp TO cdc_user",
		"GRANT SELECT ON ALL TABLES IN SCHEMA myapp_user TO cdc_user",
		"GRANT rds_replication, rds_superuser TO cdc_user",
		"CREATE PUBLICATION IF NOT EXISTS cdc_publication FOR ALL TABLES",
	}
}

func baseSecrets() *stubSecrets {
	return &stubSecrets{
		required: map[string]secrets.Credential{
			"master": {Username: "postgres", Password: "masterpw"},
			"app":    {Username: "myapp_user", Password: "apppw"},
		},
		optional: map[string]secrets.Credential{},
	}
}

func TestProvisioner_Run_FreshEnvironment(t *testing.T) {
	t.Parallel()

	admin := newPool(t)
	expectExists(admin, databaseExistsQuery, "myapp", false)
	admin.ExpectExec(regexp.QuoteMeta("CREATE DATABASE myapp")).
		WillReturnResult(pgxmock.NewResult("CREATE DATABASE", 1))
	expectExists(admin, roleExistsQuery, "myapp_user", false)
	admin.ExpectExec(regexp.QuoteMeta("CREATE USER myapp_user WITH ENCRYPTED PASSWORD 'apppw'")).
		WillReturnResult(pgxmock.NewResult("CREATE ROLE", 1))

	service := newPool(t)
	expectSequence(service, myappServiceStatements())

	connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service}}
	cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

	p := provision.New(cfg, baseSecrets(), connector.Open)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Database 'myapp' usernames are ready for use!", result.Message)

	// Administrative connection omits the database; service connection targets it.
	assert.Equal(t, []string{"", "myapp"}, connector.opens)
	// Every connection is opened with administrative credentials.
	assert.Equal(t, []string{"postgres", "postgres"}, connector.users)
	for _, closes := range connector.closes {
		assert.Equal(t, 1, *closes)
	}
	assert.NoError(t, admin.ExpectationsWereMet())
	assert.NoError(t, service.ExpectationsWereMet())
}

func TestProvisioner_Run_Idempotent(t *testing.T) {
	t.Parallel()

	// Everything already exists: no CREATE DATABASE, no CREATE USER, but the
	// grant sequence is re-applied in full.
	admin := newPool(t)
	expectExists(admin, databaseExistsQuery, "myapp", true)
	expectExists(admin, roleExistsQuery, "myapp_user", true)

	service := newPool(t)
	expectSequence(service, myappServiceStatements())

	connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service}}
	cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

	p := provision.New(cfg, baseSecrets(), connector.Open)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Database 'myapp' usernames are ready for use!", result.Message)

	assert.NoError(t, admin.ExpectationsWereMet())
	assert.NoError(t, service.ExpectationsWereMet())
}

func TestProvisioner_Run_ExplicitNames(t *testing.T) {
	t.Parallel()

	admin := newPool(t)
	expectExists(admin, databaseExistsQuery, "app_db", false)
	admin.ExpectExec(regexp.QuoteMeta("CREATE DATABASE app_db")).
		WillReturnResult(pgxmock.NewResult("CREATE DATABASE", 1))
	expectExists(admin, roleExistsQuery, "myapp_user", false)
	admin.ExpectExec(regexp.QuoteMeta("CREATE USER myapp_user WITH ENCRYPTED PASSWORD 'apppw'")).
		WillReturnResult(pgxmock.NewResult("CREATE ROLE", 1))

	service := newPool(t)
	expectSequence(service, []string{
		"CREATE SCHEMA IF NOT EXISTS app_schema",
		"CREATE EXTENSION IF NOT EXISTS pg_trgm SCHEMA app_schema CASCADE",
		"CREATE EXTENSION IF NOT EXISTS intarray SCHEMA app_schema CASCADE",
		"GRANT CONNECT ON DATABASE app_db TO myapp_user",
		"GRANT CREATE ON DATABASE app_db TO myapp_user",
		"CREATE SCHEMA IF NOT EXISTS app_schema",
		"REVOKE CREATE ON SCHEMA public FROM PUBLIC",
		"REVOKE ALL ON DATABASE app_db FROM PUBLIC",
		"GRANT USAGE, CREATE ON SCHEMA app_schema TO myapp_user",
		"ALTER DEFAULT PRIVILEGES IN SCHEMA app_schema GRANT ALL PRIVILEGES ON TABLES TO myapp_user",
		"GRANT ALL PRIVILEGES on DATABASE app_db to myapp_user",
		"ALTER DATABASE app_db OWNER TO myapp_user",
	})

	connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service}}
	cfg := provision.Config{
		MasterSecret: "master",
		AppSecret:    "app",
		DatabaseName: "app_db",
		SchemaName:   "app_schema",
	}

	p := provision.New(cfg, baseSecrets(), connector.Open)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Database 'app_db' usernames are ready for use!", result.Message)

	assert.Equal(t, []string{"", "app_db"}, connector.opens)
	assert.NoError(t, admin.ExpectationsWereMet())
	assert.NoError(t, service.ExpectationsWereMet())
}

func TestProvisioner_Run_CDC(t *testing.T) {
	t.Parallel()

	src := baseSecrets()
	src.optional["cdc"] = secrets.Credential{Username: "cdc_user", Password: "cdcpw"}

	admin := newPool(t)
	expectExists(admin, databaseExistsQuery, "myapp", true)
	expectExists(admin, roleExistsQuery, "myapp_user", true)
	expectExists(admin, roleExistsQuery, "cdc_user", false)
	admin.ExpectExec(regexp.QuoteMeta("CREATE USER cdc_user WITH ENCRYPTED PASSWORD 'cdcpw'")).
		WillReturnResult(pgxmock.NewResult("CREATE ROLE", 1))

	service := newPool(t)
	expectSequence(service, myappServiceStatements())

	cdc := newPool(t)
	expectSequence(cdc, myappCDCStatements())

	connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service, cdc}}
	cfg := provision.Config{MasterSecret: "master", AppSecret: "app", CDCSecret: "cdc"}

	p := provision.New(cfg, src, connector.Open)
	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Database 'myapp' usernames are ready for use!", result.Message)

	assert.Equal(t, []string{"", "myapp", "myapp"}, connector.opens)
	assert.Equal(t, []string{"postgres", "postgres", "postgres"}, connector.users)
	assert.NoError(t, admin.ExpectationsWereMet())
	assert.NoError(t, service.ExpectationsWereMet())
	assert.NoError(t, cdc.ExpectationsWereMet())
}

func TestProvisioner_Run_CDCGating(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, cfg provision.Config, src *stubSecrets) *stubConnector {
		t.Helper()

		admin := newPool(t)
		expectExists(admin, databaseExistsQuery, "myapp", true)
		expectExists(admin, roleExistsQuery, "myapp_user", true)

		service := newPool(t)
		expectSequence(service, myappServiceStatements())

		connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service}}
		p := provision.New(cfg, src, connector.Open)
		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Database 'myapp' usernames are ready for use!", result.Message)
		assert.NoError(t, admin.ExpectationsWereMet())
		assert.NoError(t, service.ExpectationsWereMet())
		return connector
	}

	t.Run("no secret identifier configured", func(t *testing.T) {
		t.Parallel()

		cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}
		connector := run(t, cfg, baseSecrets())
		assert.Equal(t, []string{"", "myapp"}, connector.opens)
	})

	t.Run("secret configured but not usable", func(t *testing.T) {
		t.Parallel()

		// baseSecrets has no "cdc" entry, so ResolveOptional reports not usable.
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app", CDCSecret: "cdc"}
		connector := run(t, cfg, baseSecrets())
		assert.Equal(t, []string{"", "myapp"}, connector.opens)
	})

	t.Run("cdc username unsafe as identifier", func(t *testing.T) {
		t.Parallel()

		src := baseSecrets()
		src.optional["cdc"] = secrets.Credential{Username: "cdc;user", Password: "pw"}
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app", CDCSecret: "cdc"}
		connector := run(t, cfg, src)
		assert.Equal(t, []string{"", "myapp"}, connector.opens)
	})
}

func TestProvisioner_Run_FailureIsolation(t *testing.T) {
	t.Parallel()

	t.Run("administrative failure does not stop later connections", func(t *testing.T) {
		t.Parallel()

		admin := newPool(t)
		admin.ExpectQuery(regexp.QuoteMeta(databaseExistsQuery)).
			WithArgs("myapp").
			WillReturnError(assert.AnError)

		service := newPool(t)
		expectSequence(service, myappServiceStatements())

		connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service}}
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

		p := provision.New(cfg, baseSecrets(), connector.Open)
		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Database 'myapp' usernames are ready for use!", result.Message)

		// The failing connection is still closed exactly once.
		require.Len(t, connector.closes, 2)
		assert.Equal(t, 1, *connector.closes[0])
		assert.Equal(t, 1, *connector.closes[1])
		assert.NoError(t, admin.ExpectationsWereMet())
		assert.NoError(t, service.ExpectationsWereMet())
	})

	t.Run("mid-sequence failure aborts only that connection", func(t *testing.T) {
		t.Parallel()

		src := baseSecrets()
		src.optional["cdc"] = secrets.Credential{Username: "cdc_user", Password: "cdcpw"}

		admin := newPool(t)
		expectExists(admin, databaseExistsQuery, "myapp", true)
		expectExists(admin, roleExistsQuery, "myapp_user", true)
		expectExists(admin, roleExistsQuery, "cdc_user", true)

		// The third grant fails; statements 4..12 must not be issued.
		service := newPool(t)
		stmts := myappServiceStatements()
		expectSequence(service, stmts[:2])
		service.ExpectExec(regexp.QuoteMeta(stmts[2])).WillReturnError(assert.AnError)

		cdc := newPool(t)
		expectSequence(cdc, myappCDCStatements())

		connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service, cdc}}
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app", CDCSecret: "cdc"}

		p := provision.New(cfg, src, connector.Open)
		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Database 'myapp' usernames are ready for use!", result.Message)

		assert.NoError(t, admin.ExpectationsWereMet())
		assert.NoError(t, service.ExpectationsWereMet())
		assert.NoError(t, cdc.ExpectationsWereMet())
	})
}

func TestProvisioner_Run_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	t.Run("unresolvable master secret aborts before any connection", func(t *testing.T) {
		t.Parallel()

		src := &stubSecrets{required: map[string]secrets.Credential{
			"app": {Username: "myapp_user", Password: "apppw"},
		}}
		connector := &stubConnector{t: t}
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

		p := provision.New(cfg, src, connector.Open)
		_, err := p.Run(context.Background())
		require.ErrorIs(t, err, provision.ErrResolveMasterSecret)
		assert.Empty(t, connector.opens)
	})

	t.Run("unresolvable service secret aborts before any connection", func(t *testing.T) {
		t.Parallel()

		src := &stubSecrets{required: map[string]secrets.Credential{
			"master": {Username: "postgres", Password: "masterpw"},
		}}
		connector := &stubConnector{t: t}
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

		p := provision.New(cfg, src, connector.Open)
		_, err := p.Run(context.Background())
		require.ErrorIs(t, err, provision.ErrResolveServiceSecret)
		assert.Empty(t, connector.opens)
	})

	t.Run("underivable database name aborts before any connection", func(t *testing.T) {
		t.Parallel()

		src := &stubSecrets{required: map[string]secrets.Credential{
			"master": {Username: "postgres", Password: "masterpw"},
			"app":    {Username: "my app user", Password: "apppw"},
		}}
		connector := &stubConnector{t: t}
		cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

		p := provision.New(cfg, src, connector.Open)
		_, err := p.Run(context.Background())
		require.ErrorIs(t, err, provision.ErrInvalidDatabaseName)
		assert.Empty(t, connector.opens)
	})
}

func TestProvisioner_Run_EscapesPasswordLiteral(t *testing.T) {
	t.Parallel()

	src := &stubSecrets{required: map[string]secrets.Credential{
		"master": {Username: "postgres", Password: "masterpw"},
		"app":    {Username: "myapp_user", Password: "it's secret"},
	}}

	admin := newPool(t)
	expectExists(admin, databaseExistsQuery, "myapp", true)
	expectExists(admin, roleExistsQuery, "myapp_user", false)
	admin.ExpectExec(regexp.QuoteMeta("CREATE USER myapp_user WITH ENCRYPTED PASSWORD 'it''s secret'")).
		WillReturnResult(pgxmock.NewResult("CREATE ROLE", 1))

	service := newPool(t)
	expectSequence(service, myappServiceStatements())

	connector := &stubConnector{t: t, pools: []pgxmock.PgxPoolIface{admin, service}}
	cfg := provision.Config{MasterSecret: "master", AppSecret: "app"}

	p := provision.New(cfg, src, connector.Open)
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, admin.ExpectationsWereMet())
}
