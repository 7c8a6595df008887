package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amal-vs-thoughtminds/svclink/errors"
)

const sampleYAML = `
service:
  name: order-service
http:
  port: 8002
  shutdown_timeout: 10s
peers:
  user-service:
    base_url: http://user:8000
    health_endpoint: /healthz
  analytics-service:
    base_url: http://analytics:8000
retry:
  max_attempts: 5
  base_delay: 50ms
breaker:
  failure_threshold: 3
  cooldown: 15s
events:
  nats_url: nats://localhost:4222
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "order-service", cfg.Service.Name)
	assert.Equal(t, 8002, cfg.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout.Std())
	// Defaults survive partial files
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout.Std())

	require.Len(t, cfg.Peers, 2)
	assert.Equal(t, "http://user:8000", cfg.Peers["user-service"].BaseURL)
	assert.Equal(t, "/healthz", cfg.Peers["user-service"].HealthEndpoint)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, policy.BaseDelay)
	assert.True(t, policy.Jitter)

	brk := cfg.BreakerSettings()
	assert.Equal(t, 3, brk.FailureThreshold)
	assert.Equal(t, 15*time.Second, brk.Cooldown)

	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
}

func TestParse_MissingServiceName(t *testing.T) {
	_, err := Parse([]byte(`http: {port: 8000}`))
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestParse_PeerWithoutBaseURL(t *testing.T) {
	_, err := Parse([]byte(`
service: {name: a}
peers:
  b: {}
`))
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestParse_SelfPeerRejected(t *testing.T) {
	_, err := Parse([]byte(`
service: {name: a}
peers:
  a: {base_url: http://a:8000}
`))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`
service: {name: a}
breaker: {cooldown: soon}
`))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SVCLINK_SERVICE_NAME", "renamed-service")
	t.Setenv("SVCLINK_NATS_URL", "nats://elsewhere:4222")

	cfg, err := Parse([]byte(`service: {name: original}`))
	require.NoError(t, err)
	assert.Equal(t, "renamed-service", cfg.Service.Name)
	assert.Equal(t, "nats://elsewhere:4222", cfg.Events.NATSURL)
}

func TestBuildRegistry(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	reg, err := cfg.BuildRegistry()
	require.NoError(t, err)

	desc, err := reg.Resolve("user-service")
	require.NoError(t, err)
	assert.Equal(t, "/healthz", desc.HealthEndpoint)

	desc, err = reg.Resolve("analytics-service")
	require.NoError(t, err)
	assert.Equal(t, "/health", desc.HealthEndpoint, "health endpoint defaults")
}

func TestBuildKeyRing(t *testing.T) {
	t.Setenv("ORDER_SERVICE_ENCRYPTION_KEY", "order-secret")
	t.Setenv("USER_SERVICE_ENCRYPTION_KEY", "user-secret")
	// analytics-service has no key: callable in plaintext only

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	ring, err := cfg.BuildKeyRing()
	require.NoError(t, err)

	assert.Equal(t, "order-service", ring.Owner())
	assert.True(t, ring.Has("user-service"))
	assert.False(t, ring.Has("analytics-service"))
}

func TestBuildKeyRing_MissingOwnKey(t *testing.T) {
	t.Setenv("ORDER_SERVICE_ENCRYPTION_KEY", "")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	_, err = cfg.BuildKeyRing()
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestBuildKeyRing_InlineKey(t *testing.T) {
	t.Setenv("A_ENCRYPTION_KEY", "a-secret")

	cfg, err := Parse([]byte(`
service: {name: a}
peers:
  b:
    base_url: http://b:8000
    encryption_key: b-secret
`))
	require.NoError(t, err)

	ring, err := cfg.BuildKeyRing()
	require.NoError(t, err)
	assert.True(t, ring.Has("b"))
}
