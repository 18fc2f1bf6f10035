package providers

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/logging"
)

// SSMClientAPI is the slice of the SSM client the source needs. Tests
// substitute a mock.
type SSMClientAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMSource pulls and pushes parameters under a Parameter Store prefix.
type SSMSource struct {
	client SSMClientAPI
	kmsKey string
	logger *logging.Logger
}

// SSMOption customizes an SSMSource.
type SSMOption func(*SSMSource)

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(s *SSMSource) {
		s.client = client
	}
}

// WithKMSKey sets the customer KMS key SecureString parameters are
// written under. Without it Parameter Store uses the account default.
func WithKMSKey(keyID string) SSMOption {
	return func(s *SSMSource) {
		s.kmsKey = keyID
	}
}

// NewSSMSource creates a Parameter Store source. Without WithSSMClient
// a real client is built from the default credential chain.
func NewSSMSource(ctx context.Context, cc ClientConfig, logger *logging.Logger, opts ...SSMOption) (*SSMSource, error) {
	s := &SSMSource{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		cfg, err := loadAWSConfig(ctx, cc)
		if err != nil {
			return nil, skerrors.AWSError("ssm", "load config", err)
		}
		s.client = ssm.NewFromConfig(cfg)
	}
	return s, nil
}

// Pull fetches every parameter under prefix, following pagination until
// the result set is complete. SecureString values arrive decrypted and
// are typed as secrets so the importer re-encrypts them locally. An
// empty result is not an error; the caller decides how to report it.
func (s *SSMSource) Pull(ctx context.Context, prefix string) ([]importer.Parameter, error) {
	path := normalizeSSMPrefix(prefix)
	s.logger.Debug("Pulling parameters under %s", path)

	var params []importer.Parameter
	var nextToken *string
	for {
		out, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(path),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, skerrors.AWSError("ssm", "get parameters by path", err)
		}

		for _, p := range out.Parameters {
			name := aws.ToString(p.Name)
			if name == "" {
				continue
			}
			params = append(params, importer.Parameter{
				Path:  name,
				Value: aws.ToString(p.Value),
				Type:  sourceTypeFor(p.Type),
			})
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	s.logger.Debug("Pulled %d parameters from %s", len(params), path)
	return params, nil
}

// PushEntry is one revealed safe entry headed for the parameter store.
type PushEntry struct {
	Key       string
	Value     string
	Encrypted bool
}

// Push writes entries under prefix, one parameter per entry. Encrypted
// entries become SecureString parameters; the plaintext travels only
// inside the SDK call. Existing parameters are overwritten.
func (s *SSMSource) Push(ctx context.Context, prefix string, entries []PushEntry) (int, error) {
	path := normalizeSSMPrefix(prefix)

	for i, entry := range entries {
		paramType := types.ParameterTypeString
		if entry.Encrypted {
			paramType = types.ParameterTypeSecureString
		}
		name := path + entry.Key

		input := &ssm.PutParameterInput{
			Name:      aws.String(name),
			Value:     aws.String(entry.Value),
			Type:      paramType,
			Overwrite: aws.Bool(true),
		}
		if entry.Encrypted && s.kmsKey != "" {
			input.KeyId = aws.String(s.kmsKey)
		}

		_, err := s.client.PutParameter(ctx, input)
		if err != nil {
			return i, skerrors.AWSError("ssm", "put parameter "+name, err)
		}
		s.logger.Debug("Pushed %s", name)
	}

	return len(entries), nil
}

// sourceTypeFor maps Parameter Store types onto import source types:
// SecureString re-encrypts locally, StringList stays a comma-joined
// plain list, everything else is a plain string.
func sourceTypeFor(t types.ParameterType) importer.SourceType {
	switch t {
	case types.ParameterTypeSecureString:
		return importer.SourceSecret
	case types.ParameterTypeStringList:
		return importer.SourcePlainList
	default:
		return importer.SourcePlainString
	}
}

// normalizeSSMPrefix guarantees the leading and trailing '/' Parameter
// Store paths use.
func normalizeSSMPrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
