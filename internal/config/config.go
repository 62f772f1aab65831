// Package config loads configuration from an optional file and the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type options struct {
	envPrefix string
}

type Option func(*options)

// WithEnvPrefix makes PREFIX_SECTION_KEY override section.key.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// Load config from file into the config struct, config must be a pointer to the config struct.
// Values already set in config are defaults. An empty file means environment only.
func Load(file string, config any, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	m := make(map[string]any)

	// Registering every key up front lets AutomaticEnv find nested ones.
	if err := mapstructure.Decode(config, &m); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config map: %v", err)
	}

	if o.envPrefix != "" {
		v.SetEnvPrefix(o.envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file merges over the defaults, so every key stays visible to AutomaticEnv.
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}
