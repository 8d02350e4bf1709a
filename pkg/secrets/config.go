package secrets

// Config holds AWS Secrets Manager client settings.
// All fields are populated from environment variables for deployment convenience.
type Config struct {
	// AWS region the secrets live in.
	Region string `env:"AWS_REGION" envDefault:"us-east-1"`

	// Static credentials. When empty, the client relies on the ambient
	// credential chain (instance profile, task role, etc).
	AccessKey string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `env:"AWS_SECRET_ACCESS_KEY"`

	// Endpoint overrides the Secrets Manager endpoint.
	// Used for localstack in development and VPC endpoints in production.
	Endpoint string `env:"AWS_ENDPOINT_URL"`
}
