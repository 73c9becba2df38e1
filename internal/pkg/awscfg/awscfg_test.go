package awscfg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_StaticCredentials(t *testing.T) {
	cfg, err := Load(context.Background(), Options{Region: "us-west-2", AccessKey: "AKIDEXAMPLE", SecretKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}

func TestProfile_IgnoredOnECS(t *testing.T) {
	t.Setenv("AWS_EXECUTION_ENV", "AWS_ECS_FARGATE")
	assert.Equal(t, "", profile("dev"))

	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	assert.Equal(t, "dev", profile("dev"))
}
