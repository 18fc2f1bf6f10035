package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/logging"
)

// SecretsManagerClientAPI is the slice of the Secrets Manager client the
// source needs. Tests substitute a mock.
type SecretsManagerClientAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource pulls secrets whose names share a prefix.
type SecretsManagerSource struct {
	client SecretsManagerClientAPI
	logger *logging.Logger
}

// SecretsManagerOption customizes a SecretsManagerSource.
type SecretsManagerOption func(*SecretsManagerSource)

// WithSecretsManagerClient sets a custom client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(s *SecretsManagerSource) {
		s.client = client
	}
}

// NewSecretsManagerSource creates a Secrets Manager source. Without
// WithSecretsManagerClient a real client is built from the default
// credential chain.
func NewSecretsManagerSource(ctx context.Context, cc ClientConfig, logger *logging.Logger, opts ...SecretsManagerOption) (*SecretsManagerSource, error) {
	s := &SecretsManagerSource{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(ctx, cc)
		if err != nil {
			return nil, skerrors.AWSError("secretsmanager", "load config", err)
		}
		s.client = secretsmanager.NewFromConfig(cfg)
	}
	return s, nil
}

// Pull lists every secret under the name prefix and fetches its current
// value. Every result is typed as a secret, so the importer re-encrypts
// it under the safe's own password. Binary secrets are skipped with a
// warning; the safe file is text only.
func (s *SecretsManagerSource) Pull(ctx context.Context, prefix string) ([]importer.Parameter, error) {
	s.logger.Debug("Listing secrets under %s", prefix)

	var names []string
	var nextToken *string
	for {
		input := &secretsmanager.ListSecretsInput{NextToken: nextToken}
		if prefix != "" {
			input.Filters = []types.Filter{{
				Key:    types.FilterNameStringTypeName,
				Values: []string{prefix},
			}}
		}

		out, err := s.client.ListSecrets(ctx, input)
		if err != nil {
			return nil, skerrors.AWSError("secretsmanager", "list secrets", err)
		}
		for _, entry := range out.SecretList {
			if name := aws.ToString(entry.Name); name != "" {
				names = append(names, name)
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	params := make([]importer.Parameter, 0, len(names))
	for _, name := range names {
		out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(name),
		})
		if err != nil {
			return nil, skerrors.AWSError("secretsmanager", "get secret value "+name, err)
		}
		if out.SecretString == nil {
			s.logger.Warn("Skipping binary secret %s", name)
			continue
		}
		params = append(params, importer.Parameter{
			Path:  name,
			Value: aws.ToString(out.SecretString),
			Type:  importer.SourceSecret,
		})
	}

	s.logger.Debug("Pulled %d secrets", len(params))
	return params, nil
}
