// Package config provides configuration management for stcp.
//
// Settings come from, in increasing order of precedence: the built-in
// defaults (see Defaults), the config file ($HOME/.stcp/config.yaml unless
// --config names another) and command line flags bound by the CLI.
//
// CurrentConfig reads the merged settings from viper. It is the preferred
// way to get configuration; nothing in this package keeps global copies.
package config
