package provision

// Config holds provisioning settings sourced from the environment.
// Secret identifiers point at Secrets Manager entries with
// {"username": "...", "password": "..."} payloads.
type Config struct {
	// Secret identifiers for the administrative and service credentials.
	// Both are required; the run aborts before opening any connection
	// when either cannot be resolved.
	MasterSecret string `env:"MASTER_USER_SECRET,required"`
	AppSecret    string `env:"APP_USER_SECRET,required"`

	// Secret identifier for the CDC replication credentials.
	// Absence disables CDC provisioning entirely.
	CDCSecret string `env:"CDC_USER_SECRET"`

	// Explicit database and schema names. When empty, both are derived
	// from the service account username (see DeriveTarget).
	DatabaseName string `env:"APP_DATABASE_NAME"`
	SchemaName   string `env:"APP_SCHEMA_NAME"`
}
