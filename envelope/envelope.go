// Package envelope implements the authenticated symmetric codec for
// inter-service payloads.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	stderrors "errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/amal-vs-thoughtminds/svclink/errors"
)

const (
	// KeySize is the AES-256 key length in bytes
	KeySize = 32
	// nonceSize is the standard AES-GCM nonce length
	nonceSize = 12
	// tagSize is the GCM authentication tag length
	tagSize = 16

	// kdfIterations for PBKDF2 passphrase derivation
	kdfIterations = 100_000
)

// kdfSalt is fixed so that two services deriving from the same shared
// passphrase arrive at the same key.
var kdfSalt = []byte("svclink_salt")

// Key is a 256-bit symmetric key. Keys are immutable once loaded; rotation
// means building a new key ring, never mutating a key in place.
type Key [KeySize]byte

// KeyFromBytes copies b into a Key. Fails unless b is exactly KeySize bytes.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, errors.WrapInvalid(
			fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b)),
			"Key", "KeyFromBytes", "validate length")
	}
	copy(k[:], b)
	return k, nil
}

// DeriveKey derives a Key from a string passphrase using PBKDF2-HMAC-SHA256.
// Configuration supplies keys as passphrases in environment variables; both
// sides of a peer relationship derive the same key from the same secret.
func DeriveKey(passphrase string) Key {
	var k Key
	copy(k[:], pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, KeySize, sha256.New))
	return k
}

// GenerateKey returns a random Key. Used by tests and key provisioning.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return k, errors.WrapFatal(err, "Key", "GenerateKey", "read random source")
	}
	return k, nil
}

// Seal encrypts plaintext with AES-256-GCM under key. The result is
// nonce || ciphertext+tag with a fresh random nonce per call. Safe for
// concurrent use.
func Seal(key Key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.WrapFatal(err, "envelope", "Seal", "generate nonce")
	}

	// Seal appends to nonce so the wire form is nonce || ciphertext+tag
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal. Truncated input, a wrong key, or a
// failed authentication tag all surface as ErrDecryptionFailed - tampering is
// detected, never silently decoded into garbage.
func Open(key Key, data []byte) ([]byte, error) {
	if len(data) < nonceSize+tagSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: ciphertext truncated (%d bytes)", errors.ErrDecryptionFailed, len(data)),
			"envelope", "Open", "validate length")
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDecryptionFailed, err),
			"envelope", "Open", "authenticate ciphertext")
	}
	return plaintext, nil
}

// EncryptString seals plaintext and returns it base64-encoded for transport
// in JSON bodies.
func EncryptString(key Key, plaintext []byte) (string, error) {
	sealed, err := Seal(key, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString decodes a base64 ciphertext and opens it.
func DecryptString(key Key, encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDecryptionFailed, err),
			"envelope", "DecryptString", "decode base64")
	}
	return Open(key, data)
}

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.WrapFatal(err, "envelope", "newGCM", "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.WrapFatal(err, "envelope", "newGCM", "create GCM")
	}
	return gcm, nil
}

// Envelope is the JSON wire form of an encrypted payload. Service identifies
// which peer relationship's key sealed the data; the receiver must hold that
// key in its ring or opening fails with UnknownPeer.
type Envelope struct {
	Service string `json:"service"`
	Data    string `json:"data"`
}

// New seals plaintext under key and labels the envelope with the sealing
// service's name.
func New(service string, key Key, plaintext []byte) (Envelope, error) {
	data, err := EncryptString(key, plaintext)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Service: service, Data: data}, nil
}

// Open decrypts the envelope's payload with key.
func (e Envelope) Open(key Key) ([]byte, error) {
	if e.Data == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty envelope", errors.ErrInvalidPayload),
			"Envelope", "Open", "validate envelope")
	}
	return DecryptString(key, e.Data)
}

// Validate checks structural fields before any cryptographic work.
func (e Envelope) Validate() error {
	if e.Service == "" {
		return errors.WrapInvalid(stderrors.New("envelope missing service label"),
			"Envelope", "Validate", "check service label")
	}
	if e.Data == "" {
		return errors.WrapInvalid(stderrors.New("envelope missing data"),
			"Envelope", "Validate", "check data")
	}
	return nil
}
