// Package provision bootstraps a Postgres database, its service role, and an
// optional CDC replication role from externally-stored secrets.
//
// A run is strictly sequential over three short-lived connections, all
// authenticated as the administrative user:
//
//  1. administrative connection (default database): existence-gated
//     CREATE DATABASE and CREATE USER statements
//  2. service-scoped connection: a fixed, ordered schema/extension/grant/
//     ownership sequence establishing the service role's privileges
//  3. CDC-scoped connection (only when a usable CDC secret resolved):
//     connect/select/replication grants and a logical replication publication
//
// Each connection block is failure-isolated: statement errors are logged and
// swallowed, the connection is always closed, and the remaining blocks still
// execute. Only configuration errors (unresolvable required secrets, invalid
// derived identifiers) abort the run. Re-running against an already
// provisioned environment is safe and is the intended recovery path for
// partial failures.
//
// Naming falls back to the service account convention when not configured
// explicitly: service username "myapp_user" yields database "myapp" and
// schema "myapp_user".
package provision
