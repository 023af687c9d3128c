package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type binding struct {
	flag *pflag.Flag
	key  string
}

var bindings []binding

// bind makes a flag override the config key when it is set on the command
// line. Bindings are applied by bindFlags once the config is loaded.
func bind(flag *pflag.Flag, key string) {
	bindings = append(bindings, binding{flag: flag, key: key})
}

func bindFlags() error {
	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, b.flag); err != nil {
			return err
		}
	}
	return nil
}
