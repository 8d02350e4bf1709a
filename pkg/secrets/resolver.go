package secrets

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// Credential is a username/password pair stored as a JSON secret payload.
// Instances live for the duration of a single provisioning run and are never persisted.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Client is the subset of the Secrets Manager API the resolver needs.
type Client interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver fetches credential bundles from AWS Secrets Manager.
type Resolver struct {
	client Client
}

// New creates a Resolver with a Secrets Manager client built from the given configuration.
func New(cfg Config) *Resolver {
	opts := []func(*secretsmanager.Options){
		func(o *secretsmanager.Options) {
			o.Region = cfg.Region
			if cfg.AccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKey,
					cfg.SecretKey,
					"",
				)
			}
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewResolver(secretsmanager.New(secretsmanager.Options{}, opts...))
}

// NewResolver creates a Resolver with a pre-built client. Useful for tests.
func NewResolver(client Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve fetches a secret and parses it as a required credential bundle.
// Both username and password must be present; absence is a configuration
// error and the caller cannot proceed.
func (r *Resolver) Resolve(ctx context.Context, secretID string) (Credential, error) {
	payload, err := r.fetch(ctx, secretID)
	if err != nil {
		return Credential{}, err
	}
	if len(payload) == 0 {
		return Credential{}, ErrEmptyPayload
	}

	var cred Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return Credential{}, errors.Join(ErrInvalidPayload, err)
	}
	if cred.Username == "" {
		return Credential{}, ErrMissingUsername
	}
	if cred.Password == "" {
		return Credential{}, ErrMissingPassword
	}

	return cred, nil
}

// ResolveOptional fetches a secret that is allowed to be absent or incomplete.
// Any fetch failure, empty or unparseable payload, or a payload without a
// username yields ok=false; callers skip the corresponding provisioning block
// instead of failing the run.
func (r *Resolver) ResolveOptional(ctx context.Context, secretID string) (Credential, bool) {
	payload, err := r.fetch(ctx, secretID)
	if err != nil || len(payload) == 0 {
		return Credential{}, false
	}

	var cred Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return Credential{}, false
	}
	if cred.Username == "" {
		return Credential{}, false
	}

	return cred, true
}

func (r *Resolver) fetch(ctx context.Context, secretID string) ([]byte, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, errors.Join(ErrSecretNotFound, err)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, errors.Join(ErrFetchFailed, apiErr)
		}
		return nil, errors.Join(ErrFetchFailed, err)
	}

	if out.SecretString != nil {
		return []byte(*out.SecretString), nil
	}
	return out.SecretBinary, nil
}
