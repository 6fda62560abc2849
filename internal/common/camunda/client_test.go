package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"diabetes-risk/internal/common/config"
	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig:       &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestExecuteWithRetry_RecoversFromTransientErrors(t *testing.T) {
	calls := 0
	result, err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("deadline exceeded")
	}, "topology")

	assert.Equal(t, 3, calls)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeWorkflowEngineFailed))
	assert.True(t, apperrors.AsStandard(err).Retryable)
}

func TestExecuteWithRetry_PermanentError(t *testing.T) {
	calls := 0
	_, err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("permission denied")
	}, "complete_job")

	assert.Equal(t, 1, calls)
	assert.False(t, apperrors.AsStandard(err).Retryable)
}

func TestExecuteWithRetry_Cancelled(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, errors.New("connection reset by peer")
	}, "topology")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(errors.New("Connection Refused")))
	assert.True(t, isRetryableZeebeError(errors.New("gateway unreachable")))
	assert.False(t, isRetryableZeebeError(errors.New("NOT_FOUND: job 123")))
}

func TestConfigFromAppConfig(t *testing.T) {
	cc := ConfigFromAppConfig(config.CamundaConfig{BrokerAddress: "zeebe:26500", Timeout: 5000, RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.Equal(t, 5*time.Second, cc.ConnectionTimeout)
	assert.Equal(t, 1500*time.Millisecond, cc.RequestTimeout)
	assert.True(t, cc.UsePlaintextConnection)
}

func TestInstrument(t *testing.T) {
	var got int64
	handler := Instrument("assess-diabetes-risk", func(_ worker.JobClient, job entities.Job) {
		got = job.Key
	})

	handler(nil, entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42}})
	assert.Equal(t, int64(42), got)
}

func TestStartWorker_Disabled(t *testing.T) {
	called := false
	w := StartWorker(nil, "assess-diabetes-risk", WorkerOptions{Enabled: false, MaxJobsActive: 5, Timeout: time.Second},
		func(worker.JobClient, entities.Job) { called = true }, logger.NewTestLogger(t))

	assert.Nil(t, w)
	assert.False(t, called)
	w.Stop()
}
