package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	skerrors "github.com/systmms/safekit/internal/errors"
	"github.com/systmms/safekit/internal/logging"
)

// STSClientAPI is the slice of the STS client identity checks need.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity is the AWS principal the current credentials resolve to.
type Identity struct {
	Account string
	ARN     string
	UserID  string
}

// IdentityChecker answers "who am I to AWS right now". Pull and push
// commands run it as a preflight so credential problems surface before
// any parameter traffic.
type IdentityChecker struct {
	client STSClientAPI
	logger *logging.Logger
}

// IdentityOption customizes an IdentityChecker.
type IdentityOption func(*IdentityChecker)

// WithSTSClient sets a custom STS client (for testing).
func WithSTSClient(client STSClientAPI) IdentityOption {
	return func(c *IdentityChecker) {
		c.client = client
	}
}

// NewIdentityChecker creates an identity checker. Without WithSTSClient
// a real client is built from the default credential chain.
func NewIdentityChecker(ctx context.Context, cc ClientConfig, logger *logging.Logger, opts ...IdentityOption) (*IdentityChecker, error) {
	c := &IdentityChecker{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		cfg, err := loadAWSConfig(ctx, cc)
		if err != nil {
			return nil, skerrors.AWSError("sts", "load config", err)
		}
		c.client = sts.NewFromConfig(cfg)
	}
	return c, nil
}

// Whoami resolves the caller identity behind the default credential
// chain.
func (c *IdentityChecker) Whoami(ctx context.Context) (*Identity, error) {
	out, err := c.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, skerrors.AWSError("sts", "get caller identity", err)
	}

	identity := &Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}
	c.logger.Debug("Caller identity: %s", identity.ARN)
	return identity, nil
}
