package provision

import (
	"fmt"
	"regexp"
	"strings"
)

// Target identifies the database and schema a provisioning run creates and grants.
type Target struct {
	Database string
	Schema   string
}

// usernameSuffix is the service account naming convention: the account for
// tenant "myapp" is named "myapp_user", and the database name drops the suffix.
const usernameSuffix = "_user"

// identifierRe matches strings safe to interpolate as unquoted Postgres
// identifiers. Everything outside this set would require quoting, which the
// statement sequences deliberately avoid.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// DeriveTarget computes the provisioning target. Explicit configuration wins;
// otherwise the database name is the service username minus its "_user"
// suffix and the schema name is the service username unchanged.
func DeriveTarget(cfg Config, serviceUsername string) (Target, error) {
	database := cfg.DatabaseName
	if database == "" {
		database = strings.TrimSuffix(serviceUsername, usernameSuffix)
	}

	schema := cfg.SchemaName
	if schema == "" {
		schema = serviceUsername
	}

	if !identifierRe.MatchString(database) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidDatabaseName, database)
	}
	if !identifierRe.MatchString(schema) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}

	return Target{Database: database, Schema: schema}, nil
}
