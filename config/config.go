package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/envelope"
	"github.com/amal-vs-thoughtminds/svclink/errors"
	"github.com/amal-vs-thoughtminds/svclink/keyring"
	"github.com/amal-vs-thoughtminds/svclink/pkg/retry"
	"github.com/amal-vs-thoughtminds/svclink/registry"
)

// Duration wraps time.Duration for YAML fields written as "30s", "100ms"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServiceConfig identifies this service
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// HTTPConfig configures the inbound HTTP server
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// PeerConfig describes one peer service. The encryption key is a passphrase,
// given inline or named by an environment variable; when both are empty the
// variable name is derived from the peer name (user-service reads
// USER_SERVICE_ENCRYPTION_KEY).
type PeerConfig struct {
	BaseURL        string `yaml:"base_url"`
	HealthEndpoint string `yaml:"health_endpoint"`
	EncryptionKey  string `yaml:"encryption_key"`
	KeyEnv         string `yaml:"encryption_key_env"`
}

// RetryConfig configures the dispatcher's default retry policy
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Multiplier  float64  `yaml:"multiplier"`
	Jitter      *bool    `yaml:"jitter"`
}

// BreakerConfig configures circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	Cooldown         Duration `yaml:"cooldown"`
}

// EventsConfig configures the optional NATS event sink
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// HealthConfig configures the background peer health checker
type HealthConfig struct {
	CheckInterval Duration `yaml:"check_interval"`
}

// Config is the complete service configuration
type Config struct {
	Service ServiceConfig         `yaml:"service"`
	HTTP    HTTPConfig            `yaml:"http"`
	Peers   map[string]PeerConfig `yaml:"peers"`
	Retry   RetryConfig           `yaml:"retry"`
	Breaker BreakerConfig         `yaml:"breaker"`
	Events  EventsConfig          `yaml:"events"`
	Health  HealthConfig          `yaml:"health"`
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            8000,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(100 * time.Millisecond),
			MaxDelay:    Duration(5 * time.Second),
			Multiplier:  2.0,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         Duration(30 * time.Second),
		},
		Health: HealthConfig{
			CheckInterval: Duration(30 * time.Second),
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for absent
// fields, then environment overrides, then validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "read config file")
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"config", "Parse", "unmarshal YAML")
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SVCLINK_SERVICE_NAME"); v != "" {
		c.Service.Name = v
	}
	if v := os.Getenv("SVCLINK_NATS_URL"); v != "" {
		c.Events.NATSURL = v
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: service.name", errors.ErrMissingConfig),
			"Config", "Validate", "check service name")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: http.port %d out of range", errors.ErrInvalidConfig, c.HTTP.Port),
			"Config", "Validate", "check HTTP port")
	}

	for name, peer := range c.Peers {
		if name == c.Service.Name {
			return errors.WrapInvalid(
				fmt.Errorf("%w: peer %q names this service", errors.ErrInvalidConfig, name),
				"Config", "Validate", "check peers")
		}
		if peer.BaseURL == "" {
			return errors.WrapInvalid(
				fmt.Errorf("%w: peers.%s.base_url", errors.ErrMissingConfig, name),
				"Config", "Validate", "check peers")
		}
	}

	policy := c.RetryPolicy()
	if err := policy.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "check retry policy")
	}
	return nil
}

// RetryPolicy converts the retry section into a retry.Policy
func (c *Config) RetryPolicy() retry.Policy {
	jitter := true
	if c.Retry.Jitter != nil {
		jitter = *c.Retry.Jitter
	}
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay.Std(),
		MaxDelay:    c.Retry.MaxDelay.Std(),
		Multiplier:  c.Retry.Multiplier,
		Jitter:      jitter,
	}
}

// BreakerSettings converts the breaker section into breaker thresholds
func (c *Config) BreakerSettings() breaker.Config {
	return breaker.Config{
		FailureThreshold: c.Breaker.FailureThreshold,
		Cooldown:         c.Breaker.Cooldown.Std(),
	}
}

// BuildRegistry constructs a registry populated with the configured peers
func (c *Config) BuildRegistry() (*registry.Registry, error) {
	reg := registry.New()
	for name, peer := range c.Peers {
		err := reg.Register(registry.Descriptor{
			Name:           name,
			BaseURL:        peer.BaseURL,
			HealthEndpoint: peer.HealthEndpoint,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// BuildKeyRing constructs the key ring for this service. The own key comes
// from <NAME>_ENCRYPTION_KEY; peer keys come from inline passphrases or their
// configured (or derived) environment variables. Peers without key material
// are skipped: they can be called in plaintext but not encrypted to.
func (c *Config) BuildKeyRing() (*keyring.Ring, error) {
	ownEnv := keyEnvName(c.Service.Name)
	passphrase := os.Getenv(ownEnv)
	if passphrase == "" {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %s not set", errors.ErrMissingConfig, ownEnv),
			"Config", "BuildKeyRing", "load own key")
	}

	peers := make(map[string]envelope.Key)
	for name, peer := range c.Peers {
		secret := peer.EncryptionKey
		if secret == "" {
			env := peer.KeyEnv
			if env == "" {
				env = keyEnvName(name)
			}
			secret = os.Getenv(env)
		}
		if secret == "" {
			continue
		}
		peers[name] = envelope.DeriveKey(secret)
	}

	return keyring.New(c.Service.Name, envelope.DeriveKey(passphrase), peers)
}

// keyEnvName derives the environment variable holding a service's passphrase
func keyEnvName(service string) string {
	return strings.ToUpper(strings.ReplaceAll(service, "-", "_")) + "_ENCRYPTION_KEY"
}
