package config

import (
	"os"
	"path/filepath"

	"github.com/go-i2p/logger"
	"github.com/spf13/viper"

	"github.com/go-stcp/stcp/lib/util"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const STCP_BASE_DIR = ".stcp"

// Viper keys.
const (
	KeyBufferSize    = "transport.buffer_size"
	KeyPollInterval  = "transport.poll_interval"
	KeyReadTimeout   = "transport.read_timeout"
	KeyRecvTimeout   = "transport.recv_timeout"
	KeyListenAddress = "transport.listen_address"
	KeyWarnInterval  = "transport.warn_interval"
	KeyCipherName    = "cipher.name"
	KeyCipherKeyHex  = "cipher.key_hex"
	KeyAuthenticated = "cipher.authenticated"
	KeyDigest        = "cipher.digest"
	KeyMaxNodes      = "vnet.max_nodes"
)

func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		// Default config path is $HOME/.stcp/
		viper.AddConfigPath(BuildConfigDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	handleConfigFile()
}

func setDefaults() {
	d := Defaults()

	viper.SetDefault(KeyBufferSize, d.Transport.BufferSize)
	viper.SetDefault(KeyPollInterval, d.Transport.PollInterval)
	viper.SetDefault(KeyReadTimeout, d.Transport.ReadTimeout)
	viper.SetDefault(KeyRecvTimeout, d.Transport.RecvTimeout)
	viper.SetDefault(KeyListenAddress, d.Transport.ListenAddress)
	viper.SetDefault(KeyWarnInterval, d.Transport.WarnInterval)

	viper.SetDefault(KeyCipherName, d.Cipher.Name)
	viper.SetDefault(KeyCipherKeyHex, d.Cipher.KeyHex)
	viper.SetDefault(KeyAuthenticated, d.Cipher.Authenticated)
	viper.SetDefault(KeyDigest, d.Cipher.Digest)

	viper.SetDefault(KeyMaxNodes, d.VNet.MaxNodes)
}

func createDefaultConfig(defaultConfigDir string) {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o700); err != nil {
		log.Fatalf("Could not create config directory: %s", err)
	}

	// The file can hold key material.
	if err := viper.WriteConfigAs(defaultConfigFile); err != nil {
		log.Fatalf("Could not write default config file: %s", err)
	}
	if err := os.Chmod(defaultConfigFile, 0o600); err != nil {
		log.WithError(err).Warn("Could not restrict config file permissions")
	}

	log.Debugf("Created default configuration at: %s", defaultConfigFile)
}

func handleConfigFile() {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if CfgFile != "" {
				log.Fatalf("Config file %s is not found: %s", CfgFile, err)
			} else {
				createDefaultConfig(BuildConfigDirPath())
			}
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func BuildConfigDirPath() string {
	return filepath.Join(util.UserHome(), STCP_BASE_DIR)
}
