package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amal-vs-thoughtminds/svclink/errors"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintexts := [][]byte{
		[]byte(`{"x":1}`),
		[]byte(""),
		[]byte("plain text, not JSON"),
		make([]byte, 64*1024), // large zero payload
	}

	for _, plaintext := range plaintexts {
		sealed, err := Seal(key, plaintext)
		require.NoError(t, err)

		opened, err := Open(key, sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	a, err := Seal(key, []byte("same payload"))
	require.NoError(t, err)
	b, err := Seal(key, []byte("same payload"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpen_WrongKeyFails(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Seal(k1, []byte(`{"x":1}`))
	require.NoError(t, err)

	opened, err := Open(k2, sealed)
	assert.Nil(t, opened)
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
}

func TestOpen_TamperedCiphertextFails(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Seal(key, []byte("sensitive"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = Open(key, sealed)
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
}

func TestOpen_TruncatedInputFails(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = Open(key, []byte("short"))
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
	assert.True(t, errors.IsInvalid(err))
}

func TestEncryptDecryptString(t *testing.T) {
	key := DeriveKey("shared-secret")

	encoded, err := EncryptString(key, []byte(`{"event":"login"}`))
	require.NoError(t, err)

	decoded, err := DecryptString(key, encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"event":"login"}`), decoded)
}

func TestDecryptString_BadBase64(t *testing.T) {
	key := DeriveKey("shared-secret")

	_, err := DecryptString(key, "not base64!!!")
	assert.ErrorIs(t, err, errors.ErrDecryptionFailed)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	assert.Equal(t, DeriveKey("secret-a"), DeriveKey("secret-a"))
	assert.NotEqual(t, DeriveKey("secret-a"), DeriveKey("secret-b"))
}

func TestKeyFromBytes(t *testing.T) {
	b := make([]byte, KeySize)
	b[0] = 0x42
	k, err := KeyFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), k[0])

	_, err = KeyFromBytes(make([]byte, 16))
	assert.Error(t, err)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	key := DeriveKey("user-service-key")

	env, err := New("user-service", key, []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, "user-service", env.Service)
	require.NoError(t, env.Validate())

	opened, err := env.Open(key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"x":1}`), opened)
}

func TestEnvelope_Validate(t *testing.T) {
	assert.Error(t, Envelope{}.Validate())
	assert.Error(t, Envelope{Service: "a"}.Validate())
	assert.Error(t, Envelope{Data: "b"}.Validate())
	assert.NoError(t, Envelope{Service: "a", Data: "b"}.Validate())
}

func TestEnvelope_OpenEmpty(t *testing.T) {
	key := DeriveKey("k")
	_, err := Envelope{Service: "a"}.Open(key)
	assert.ErrorIs(t, err, errors.ErrInvalidPayload)
}
