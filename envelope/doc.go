// Package envelope provides the keyed symmetric codec for request and
// response payloads exchanged between services.
//
// Payloads are sealed with AES-256-GCM so confidentiality and integrity come
// together: a wrong key, a truncated body, or any tampering fails
// authentication and surfaces as ErrDecryptionFailed. The wire form is
// nonce || ciphertext+tag, base64-encoded when carried inside a JSON body.
//
// An Envelope pairs the ciphertext with the label of the service whose key
// sealed it, letting the receiver pick the matching key from its ring.
//
// Keys are 32 bytes. DeriveKey turns a shared string passphrase into a key
// with PBKDF2-HMAC-SHA256 so operators can configure peer relationships with
// plain secrets in environment variables.
//
// All functions are pure and safe for concurrent use with distinct keys.
package envelope
