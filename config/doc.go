// Package config loads and validates service configuration from YAML files
// with environment variable overrides. It also builds the registry and key
// ring components from the configured peer set, so a service wires the whole
// communication layer from one file:
//
//	cfg, err := config.Load("svclink.yaml")
//	reg, err := cfg.BuildRegistry()
//	ring, err := cfg.BuildKeyRing()
//
// Encryption passphrases never live in the file itself; they come from
// environment variables named after each service (USER_SERVICE_ENCRYPTION_KEY
// for "user-service") unless a peer entry names a different variable.
package config
