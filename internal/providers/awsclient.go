// Package providers holds the AWS collaborators a safe can sync with:
// SSM Parameter Store, Secrets Manager, and STS for identity preflight.
// Each collaborator hides its SDK client behind a small interface so
// tests inject mocks, and every real client comes from the default AWS
// credential chain.
package providers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// ClientConfig carries the shared AWS client settings. Static
// credentials and the endpoint override exist for LocalStack and tests;
// production use relies on the default chain.
type ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// loadAWSConfig builds an aws.Config from the default credential chain:
// environment variables, the shared config file, then instance roles.
func loadAWSConfig(ctx context.Context, cc ClientConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cc.Region))
	}
	if cc.AccessKeyID != "" && cc.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cc.AccessKeyID, cc.SecretAccessKey, ""),
		))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
