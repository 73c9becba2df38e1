// Package awscfg builds aws.Config values for the S3 inbox and the Bedrock
// classifier from the service configuration.
package awscfg

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Options selects region and credentials. Static keys win over a shared
// profile; with neither, the default chain (env, IAM role) is used.
type Options struct {
	Region    string
	Profile   string
	AccessKey string
	SecretKey string
}

// Load resolves the AWS configuration.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	switch {
	case opts.AccessKey != "" && opts.SecretKey != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	case profile(opts.Profile) != "":
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile(opts.Profile)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// profile drops the shared profile when running on ECS or Lambda, where the
// task role must be used.
func profile(p string) string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return p
}
