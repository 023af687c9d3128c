package config

import (
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-stcp/stcp/lib/cipher"
	"github.com/go-stcp/stcp/lib/packet"
	"github.com/go-stcp/stcp/lib/stcp"
	"github.com/go-stcp/stcp/lib/vnet"
)

// ConfigDefaults contains every setting of stcp. Defaults() fills it with
// the built-in values; CurrentConfig() with the merged viper settings.
type ConfigDefaults struct {
	Transport TransportDefaults `yaml:"transport"`
	Cipher    CipherDefaults    `yaml:"cipher"`
	VNet      VNetDefaults      `yaml:"vnet"`
}

// TransportDefaults contains socket settings
type TransportDefaults struct {
	// BufferSize is the most bytes read from a connection at once
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// PollInterval is how often a blocked receive re-checks its buffer
	// Default: 1ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReadTimeout bounds each raw read of the receive loop
	// Default: 100ms
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// RecvTimeout bounds each receive call; 0 blocks until data or close
	// Default: 0
	RecvTimeout time.Duration `yaml:"recv_timeout"`

	// WarnInterval is the minimum spacing of dropped packet warnings
	// Default: 5s
	WarnInterval time.Duration `yaml:"warn_interval"`

	// ListenAddress is where "stcp serve" listens
	// Default: 127.0.0.1:7700
	ListenAddress string `yaml:"listen_address"`
}

// CipherDefaults selects the cipher of every connection
type CipherDefaults struct {
	// Name is a registered cipher name
	// Default: AES-CTR
	Name string `yaml:"name"`

	// KeyHex is the hex encoded shared key. Both peers need the same one.
	// Default: empty (must be configured)
	KeyHex string `yaml:"key_hex"`

	// Authenticated wraps the cipher with a plaintext digest
	// Default: true
	Authenticated bool `yaml:"authenticated"`

	// Digest names the digest used when Authenticated is set
	// Default: sha256
	Digest string `yaml:"digest"`
}

// VNetDefaults contains local node overlay settings
type VNetDefaults struct {
	// MaxNodes bounds the number of local nodes in a registry
	// Default: 8
	MaxNodes int `yaml:"max_nodes"`
}

// Defaults returns a ConfigDefaults instance with all default values set.
// This is the single source of truth for all configuration defaults.
func Defaults() ConfigDefaults {
	return ConfigDefaults{
		Transport: buildTransportDefaults(),
		Cipher:    buildCipherDefaults(),
		VNet:      buildVNetDefaults(),
	}
}

func buildTransportDefaults() TransportDefaults {
	return TransportDefaults{
		BufferSize:    stcp.DefaultBufferSize,
		PollInterval:  stcp.DefaultPollInterval,
		ReadTimeout:   stcp.DefaultReadTimeout,
		RecvTimeout:   0,
		WarnInterval:  stcp.DefaultWarnInterval,
		ListenAddress: "127.0.0.1:7700",
	}
}

func buildCipherDefaults() CipherDefaults {
	return CipherDefaults{
		Name:          cipher.NameAESCTR,
		KeyHex:        "",
		Authenticated: true,
		Digest:        "sha256",
	}
}

func buildVNetDefaults() VNetDefaults {
	return VNetDefaults{
		MaxNodes: vnet.DefaultMaxNodes,
	}
}

// Validate checks if the provided configuration values are reasonable.
// Returns an error describing the first invalid value found.
func Validate(cfg ConfigDefaults) error {
	log.WithFields(logger.Fields{
		"at":     "config.Validate",
		"reason": "verification_requested",
	}).Debug("validating configuration")
	validators := []func() error{
		func() error { return validateTransport(cfg.Transport) },
		func() error { return validateCipher(cfg.Cipher) },
		func() error { return validateVNet(cfg.VNet) },
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			log.WithError(err).Error("Configuration validation failed")
			return err
		}
	}
	return nil
}

func validateTransport(transport TransportDefaults) error {
	if transport.BufferSize < 64 || transport.BufferSize > packet.MaxPayloadSize {
		log.WithField("buffer_size", transport.BufferSize).Error("Invalid transport configuration")
		return newValidationError("Transport.BufferSize must be between 64 bytes and the maximum payload size")
	}
	if transport.PollInterval <= 0 {
		log.WithField("poll_interval", transport.PollInterval).Error("Invalid transport configuration")
		return newValidationError("Transport.PollInterval must be positive")
	}
	if transport.ReadTimeout <= 0 {
		log.WithField("read_timeout", transport.ReadTimeout).Error("Invalid transport configuration")
		return newValidationError("Transport.ReadTimeout must be positive")
	}
	if transport.RecvTimeout < 0 {
		log.WithField("recv_timeout", transport.RecvTimeout).Error("Invalid transport configuration")
		return newValidationError("Transport.RecvTimeout must not be negative")
	}
	if transport.ListenAddress == "" {
		return newValidationError("Transport.ListenAddress must be set")
	}
	return nil
}

func validateCipher(c CipherDefaults) error {
	if _, ok := cipher.LookupName(c.Name); !ok {
		log.WithField("cipher", c.Name).Error("Invalid cipher configuration")
		return newValidationError("Cipher.Name must be a registered cipher: " + c.Name)
	}
	if c.Authenticated {
		if _, err := cipher.ParseDigest(c.Digest); err != nil {
			return newValidationError("Cipher.Digest is not a known digest: " + c.Digest)
		}
	}
	return nil
}

func validateVNet(v VNetDefaults) error {
	if v.MaxNodes < 1 {
		log.WithField("max_nodes", v.MaxNodes).Error("Invalid vnet configuration")
		return newValidationError("VNet.MaxNodes must be at least 1")
	}
	return nil
}

// validationError is returned when configuration validation fails
type validationError struct {
	message string
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

func (e *validationError) Error() string {
	return "configuration validation failed: " + e.message
}
