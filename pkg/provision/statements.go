package provision

import "fmt"

// Existence checks run on the administrative connection. Database lookup is
// case-insensitive because CREATE DATABASE folds unquoted names to lowercase.
const (
	databaseExistsQuery = `SELECT EXISTS (SELECT FROM pg_catalog.pg_database WHERE lower(datname) = lower($1))`
	roleExistsQuery     = `SELECT EXISTS (SELECT FROM pg_roles WHERE rolname = $1)`
)

// serviceStatements is the fixed grant sequence for the service role, run on
// the service-scoped connection. The order is part of the contract and must
// not be rearranged. The CREATE SCHEMA at position 6 repeats position 1
// verbatim; it has always been issued twice and stays until the platform team
// confirms dropping it is safe on every long-lived environment.
func serviceStatements(t Target, serviceUser string) []string {
	return []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", t.Schema),
		fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS pg_trgm SCHEMA %s CASCADE", t.Schema),
		fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS intarray SCHEMA %s CASCADE", t.Schema),
		fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", t.Database, serviceUser),
		fmt.Sprintf("GRANT CREATE ON DATABASE %s TO %s", t.Database, serviceUser),
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", t.Schema),
		"REVOKE CREATE ON SCHEMA public FROM PUBLIC",
		fmt.Sprintf("REVOKE ALL ON DATABASE %s FROM PUBLIC", t.Database),
		fmt.Sprintf("GRANT USAGE, CREATE ON SCHEMA %s TO %s", t.Schema, serviceUser),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL PRIVILEGES ON TABLES TO %s", t.Schema, serviceUser),
		fmt.Sprintf("GRANT ALL PRIVILEGES on DATABASE %s to %s", t.Database, serviceUser),
		fmt.Sprintf("ALTER DATABASE %s OWNER TO %s", t.Database, serviceUser),
	}
}

// cdcStatements is the grant sequence for the replication role, run on the
// CDC-scoped connection. rds_replication and rds_superuser are the RDS
// proxy roles for replication privileges.
func cdcStatements(t Target, cdcUser string) []string {
	return []string{
		fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", t.Database, cdcUser),
		fmt.Sprintf("GRANT SELECT ON ALL TABLES IN SCHEMA %s TO %s", t.Schema, cdcUser),
		fmt.Sprintf("GRANT rds_replication, rds_superuser TO %s", cdcUser),
		"CREATE PUBLICATION IF NOT EXISTS cdc_publication FOR ALL TABLES",
	}
}
