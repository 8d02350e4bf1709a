package provision

import "errors"

var (
	ErrResolveMasterSecret  = errors.New("provision: failed to resolve master credentials")
	ErrResolveServiceSecret = errors.New("provision: failed to resolve service credentials")
	ErrInvalidDatabaseName  = errors.New("provision: database name is not a valid identifier")
	ErrInvalidSchemaName    = errors.New("provision: schema name is not a valid identifier")
)
