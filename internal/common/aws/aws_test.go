package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClients(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	sesClient, err := NewSESClient(context.Background(), "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", sesClient.Options().Region)

	snsClient, err := NewSNSClient(context.Background(), "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", snsClient.Options().Region)

	_, err = NewSNSClient(context.Background(), "")
	assert.Error(t, err)
}
