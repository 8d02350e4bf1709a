package secrets

import "errors"

var (
	ErrSecretNotFound  = errors.New("secrets: secret not found")
	ErrFetchFailed     = errors.New("secrets: failed to fetch secret")
	ErrEmptyPayload    = errors.New("secrets: secret payload is empty")
	ErrInvalidPayload  = errors.New("secrets: secret payload is not a valid JSON object")
	ErrMissingUsername = errors.New("secrets: secret payload is missing username")
	ErrMissingPassword = errors.New("secrets: secret payload is missing password")
)
