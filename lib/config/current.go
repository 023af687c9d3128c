package config

import (
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-stcp/stcp/lib/cipher"
	"github.com/go-stcp/stcp/lib/metrics"
	"github.com/go-stcp/stcp/lib/stcp"
)

// CurrentConfig reads the merged settings from viper.
func CurrentConfig() ConfigDefaults {
	return ConfigDefaults{
		Transport: TransportDefaults{
			BufferSize:    viper.GetInt(KeyBufferSize),
			PollInterval:  viper.GetDuration(KeyPollInterval),
			ReadTimeout:   viper.GetDuration(KeyReadTimeout),
			RecvTimeout:   viper.GetDuration(KeyRecvTimeout),
			WarnInterval:  viper.GetDuration(KeyWarnInterval),
			ListenAddress: viper.GetString(KeyListenAddress),
		},
		Cipher: CipherDefaults{
			Name:          viper.GetString(KeyCipherName),
			KeyHex:        viper.GetString(KeyCipherKeyHex),
			Authenticated: viper.GetBool(KeyAuthenticated),
			Digest:        viper.GetString(KeyDigest),
		},
		VNet: VNetDefaults{
			MaxNodes: viper.GetInt(KeyMaxNodes),
		},
	}
}

// NewCipher builds the configured cipher through the cipher registry.
func (c CipherDefaults) NewCipher() (cipher.Cipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(c.KeyHex))
	if err != nil {
		return nil, oops.Wrapf(cipher.ErrInvalidArgument, "cipher.key_hex is not hex: %v", err)
	}
	base, err := cipher.New(c.Name, key)
	if err != nil {
		return nil, err
	}
	if !c.Authenticated {
		return base, nil
	}
	if _, already := base.(*cipher.Authenticated); already {
		return base, nil
	}
	digest, err := cipher.ParseDigest(c.Digest)
	if err != nil {
		return nil, err
	}
	return cipher.NewAuthenticated(base, digest)
}

// SocketOptions turns the transport settings into socket options.
func (t TransportDefaults) SocketOptions(m *metrics.Metrics) []stcp.Option {
	opts := []stcp.Option{
		stcp.WithBufferSize(t.BufferSize),
		stcp.WithPollInterval(t.PollInterval),
		stcp.WithReadTimeout(t.ReadTimeout),
		stcp.WithWarnInterval(t.WarnInterval),
		stcp.WithMetrics(m),
	}
	if t.RecvTimeout > 0 {
		opts = append(opts, stcp.WithRecvTimeout(t.RecvTimeout))
	}
	return opts
}

// YAML renders the settings with the key redacted.
func (c ConfigDefaults) YAML() ([]byte, error) {
	if c.Cipher.KeyHex != "" {
		c.Cipher.KeyHex = "<redacted>"
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, oops.Wrapf(err, "rendering configuration")
	}
	return out, nil
}
