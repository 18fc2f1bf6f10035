package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/importer"
	"github.com/systmms/safekit/internal/logging"
	"github.com/systmms/safekit/internal/providers"
)

type mockSSMClient struct {
	getFn func(ctx context.Context, params *ssm.GetParametersByPathInput) (*ssm.GetParametersByPathOutput, error)
	putFn func(ctx context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error)
}

func (m *mockSSMClient) GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	return m.getFn(ctx, params)
}

func (m *mockSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	return m.putFn(ctx, params)
}

func newSSMSource(t *testing.T, client providers.SSMClientAPI) *providers.SSMSource {
	t.Helper()
	source, err := providers.NewSSMSource(context.Background(), providers.ClientConfig{}, logging.New(false, true), providers.WithSSMClient(client))
	require.NoError(t, err)
	return source
}

func TestSSMPullFollowsPagination(t *testing.T) {
	t.Parallel()

	calls := 0
	client := &mockSSMClient{
		getFn: func(_ context.Context, params *ssm.GetParametersByPathInput) (*ssm.GetParametersByPathOutput, error) {
			calls++
			assert.Equal(t, "/myapp/prod/", aws.ToString(params.Path))
			assert.True(t, aws.ToBool(params.Recursive))
			assert.True(t, aws.ToBool(params.WithDecryption))

			switch calls {
			case 1:
				assert.Nil(t, params.NextToken)
				return &ssm.GetParametersByPathOutput{
					Parameters: []types.Parameter{
						{Name: aws.String("/myapp/prod/API_TOKEN"), Value: aws.String("tok-123456"), Type: types.ParameterTypeSecureString},
						{Name: aws.String("/myapp/prod/LOG_LEVEL"), Value: aws.String("debug"), Type: types.ParameterTypeString},
					},
					NextToken: aws.String("page-2"),
				}, nil
			default:
				assert.Equal(t, "page-2", aws.ToString(params.NextToken))
				return &ssm.GetParametersByPathOutput{
					Parameters: []types.Parameter{
						{Name: aws.String("/myapp/prod/ALLOWED_HOSTS"), Value: aws.String("a.example.com,b.example.com"), Type: types.ParameterTypeStringList},
					},
				}, nil
			}
		},
	}

	params, err := newSSMSource(t, client).Pull(context.Background(), "/myapp/prod/")
	require.NoError(t, err)
	require.Equal(t, 2, calls, "pagination must be followed to the end")

	require.Len(t, params, 3)
	assert.Equal(t, importer.Parameter{Path: "/myapp/prod/API_TOKEN", Value: "tok-123456", Type: importer.SourceSecret}, params[0])
	assert.Equal(t, importer.Parameter{Path: "/myapp/prod/LOG_LEVEL", Value: "debug", Type: importer.SourcePlainString}, params[1])
	assert.Equal(t, importer.Parameter{Path: "/myapp/prod/ALLOWED_HOSTS", Value: "a.example.com,b.example.com", Type: importer.SourcePlainList}, params[2])
}

func TestSSMPullNormalizesPrefix(t *testing.T) {
	t.Parallel()

	var seenPath string
	client := &mockSSMClient{
		getFn: func(_ context.Context, params *ssm.GetParametersByPathInput) (*ssm.GetParametersByPathOutput, error) {
			seenPath = aws.ToString(params.Path)
			return &ssm.GetParametersByPathOutput{}, nil
		},
	}

	_, err := newSSMSource(t, client).Pull(context.Background(), "myapp/prod")
	require.NoError(t, err)
	assert.Equal(t, "/myapp/prod/", seenPath)
}

func TestSSMPullEmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	client := &mockSSMClient{
		getFn: func(_ context.Context, _ *ssm.GetParametersByPathInput) (*ssm.GetParametersByPathOutput, error) {
			return &ssm.GetParametersByPathOutput{}, nil
		},
	}

	params, err := newSSMSource(t, client).Pull(context.Background(), "/empty/prefix/")
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestSSMPullWrapsSDKErrors(t *testing.T) {
	t.Parallel()

	client := &mockSSMClient{
		getFn: func(_ context.Context, _ *ssm.GetParametersByPathInput) (*ssm.GetParametersByPathOutput, error) {
			return nil, errors.New("operation error SSM: GetParametersByPath, AccessDeniedException")
		},
	}

	_, err := newSSMSource(t, client).Pull(context.Background(), "/myapp/prod/")

	var userErr skerrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Suggestion, "ssm:")
}

func TestSSMPushWritesEveryEntry(t *testing.T) {
	t.Parallel()

	var puts []*ssm.PutParameterInput
	client := &mockSSMClient{
		putFn: func(_ context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			puts = append(puts, params)
			return &ssm.PutParameterOutput{}, nil
		},
	}

	entries := []providers.PushEntry{
		{Key: "API_TOKEN", Value: "tok-123456", Encrypted: true},
		{Key: "LOG_LEVEL", Value: "debug", Encrypted: false},
	}
	n, err := newSSMSource(t, client).Push(context.Background(), "/myapp/prod", entries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, puts, 2)
	assert.Equal(t, "/myapp/prod/API_TOKEN", aws.ToString(puts[0].Name))
	assert.Equal(t, types.ParameterTypeSecureString, puts[0].Type)
	assert.Equal(t, "tok-123456", aws.ToString(puts[0].Value))
	assert.True(t, aws.ToBool(puts[0].Overwrite))

	assert.Equal(t, "/myapp/prod/LOG_LEVEL", aws.ToString(puts[1].Name))
	assert.Equal(t, types.ParameterTypeString, puts[1].Type)
}

func TestSSMPushUsesKMSKeyForSecureStrings(t *testing.T) {
	t.Parallel()

	var puts []*ssm.PutParameterInput
	client := &mockSSMClient{
		putFn: func(_ context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			puts = append(puts, params)
			return &ssm.PutParameterOutput{}, nil
		},
	}
	source, err := providers.NewSSMSource(context.Background(), providers.ClientConfig{}, logging.New(false, true),
		providers.WithSSMClient(client), providers.WithKMSKey("alias/safekit"))
	require.NoError(t, err)

	entries := []providers.PushEntry{
		{Key: "API_TOKEN", Value: "tok-123456", Encrypted: true},
		{Key: "LOG_LEVEL", Value: "debug", Encrypted: false},
	}
	_, err = source.Push(context.Background(), "/myapp/prod", entries)
	require.NoError(t, err)

	require.Len(t, puts, 2)
	assert.Equal(t, "alias/safekit", aws.ToString(puts[0].KeyId))
	assert.Nil(t, puts[1].KeyId, "plain String parameters carry no KMS key")
}

func TestSSMPushReportsHowFarItGot(t *testing.T) {
	t.Parallel()

	calls := 0
	client := &mockSSMClient{
		putFn: func(_ context.Context, _ *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("ThrottlingException: rate exceeded")
			}
			return &ssm.PutParameterOutput{}, nil
		},
	}

	entries := []providers.PushEntry{
		{Key: "KEY_A", Value: "1"},
		{Key: "KEY_B", Value: "2"},
		{Key: "KEY_C", Value: "3"},
	}
	n, err := newSSMSource(t, client).Push(context.Background(), "/myapp/prod", entries)
	require.Error(t, err)
	assert.Equal(t, 1, n, "push reports the number of parameters written before the failure")
	assert.Equal(t, 2, calls)
}
