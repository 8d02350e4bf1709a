// Package secrets resolves database credential bundles from AWS Secrets Manager.
//
// Secrets are JSON objects with the shape {"username": "...", "password": "..."}.
// The package distinguishes required secrets (administrative and service
// credentials, where missing fields abort the run) from optional ones (the CDC
// credential, where any fetch or parse problem simply disables the feature).
//
// # Configuration
//
// All settings are loaded from environment variables:
//
//	AWS_REGION            - AWS region (default: us-east-1)
//	AWS_ACCESS_KEY_ID     - Static access key (optional, ambient chain otherwise)
//	AWS_SECRET_ACCESS_KEY - Static secret key (optional)
//	AWS_ENDPOINT_URL      - Endpoint override for localstack / VPC endpoints
//
// # Usage
//
//	resolver := secrets.New(cfg)
//
//	master, err := resolver.Resolve(ctx, os.Getenv("MASTER_USER_SECRET"))
//	if err != nil {
//		// fatal: the run cannot proceed without administrative credentials
//	}
//
//	cdc, ok := resolver.ResolveOptional(ctx, os.Getenv("CDC_USER_SECRET"))
//	if !ok {
//		// CDC provisioning disabled for this run
//	}
//
// # Error Handling
//
// The package defines sentinel errors for required-secret failures:
//
//   - [ErrSecretNotFound] - The secret does not exist in Secrets Manager
//   - [ErrFetchFailed] - Any other API failure
//   - [ErrEmptyPayload] - The secret exists but carries no payload
//   - [ErrInvalidPayload] - The payload is not a JSON object
//   - [ErrMissingUsername], [ErrMissingPassword] - Required fields absent
//
// Errors are wrapped using [errors.Join] to preserve the original error context.
package secrets
