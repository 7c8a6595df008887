package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amal-vs-thoughtminds/svclink/envelope"
	"github.com/amal-vs-thoughtminds/svclink/errors"
)

func TestNew_RequiresOwner(t *testing.T) {
	_, err := New("", envelope.Key{}, nil)
	assert.Error(t, err)
}

func TestRing_KeyLookup(t *testing.T) {
	own := envelope.DeriveKey("own-secret")
	peer := envelope.DeriveKey("peer-secret")

	ring, err := New("user-service", own, map[string]envelope.Key{
		"analytics-service": peer,
	})
	require.NoError(t, err)

	assert.Equal(t, "user-service", ring.Owner())
	assert.Equal(t, own, ring.Own())

	got, err := ring.Key("analytics-service")
	require.NoError(t, err)
	assert.Equal(t, peer, got)

	// Asking for the owner's name returns the own key
	got, err = ring.Key("user-service")
	require.NoError(t, err)
	assert.Equal(t, own, got)
}

func TestRing_UnknownPeer(t *testing.T) {
	ring, err := New("user-service", envelope.DeriveKey("k"), nil)
	require.NoError(t, err)

	_, err = ring.Key("billing-service")
	assert.ErrorIs(t, err, errors.ErrUnknownPeer)
	assert.False(t, ring.Has("billing-service"))
	assert.True(t, ring.Has("user-service"))
}

func TestRing_Services_Sorted(t *testing.T) {
	ring, err := New("user-service", envelope.DeriveKey("k"), map[string]envelope.Key{
		"billing-service":   envelope.DeriveKey("b"),
		"analytics-service": envelope.DeriveKey("a"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"analytics-service", "billing-service"}, ring.Services())
}

func TestRing_CopiesPeerMap(t *testing.T) {
	peers := map[string]envelope.Key{"analytics-service": envelope.DeriveKey("a")}
	ring, err := New("user-service", envelope.DeriveKey("k"), peers)
	require.NoError(t, err)

	// Mutating the caller's map must not affect the ring
	delete(peers, "analytics-service")
	assert.True(t, ring.Has("analytics-service"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("USER_SERVICE_ENCRYPTION_KEY", "own-secret")
	t.Setenv("ANALYTICS_SERVICE_ENCRYPTION_KEY", "analytics-secret")

	ring, err := FromEnv("user-service")
	require.NoError(t, err)

	assert.Equal(t, envelope.DeriveKey("own-secret"), ring.Own())

	key, err := ring.Key("analytics-service")
	require.NoError(t, err)
	assert.Equal(t, envelope.DeriveKey("analytics-secret"), key)
}

func TestFromEnv_MissingOwnKey(t *testing.T) {
	t.Setenv("NO_SUCH_SERVICE_ENCRYPTION_KEY", "")

	_, err := FromEnv("no-such-service")
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
	assert.True(t, errors.IsFatal(err))
}

func TestEnvNameMapping(t *testing.T) {
	assert.Equal(t, "USER_SERVICE_ENCRYPTION_KEY", envName("user-service"))
	assert.Equal(t, "user-service", serviceName("USER_SERVICE_ENCRYPTION_KEY"))
}
