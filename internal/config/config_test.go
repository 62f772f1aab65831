package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quotient/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32 `mapstructure:"port"`
	} `mapstructure:"http"`

	Redis struct {
		Addrs  []string `mapstructure:"addrs"`
		Prefix string   `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Quiz struct {
		AttemptTTL time.Duration `mapstructure:"attempt_ttl"`
	} `mapstructure:"quiz"`
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "quotient"
	c.Quiz.AttemptTTL = 2 * time.Hour
	return c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		file   string
		env    map[string]string
		assert func(t *testing.T, c testConfig, err error)
	}{
		"defaults only": {
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, defaults(), c)
			},
		},
		"file overrides defaults": {
			file: "http:\n  port: 9090\nquiz:\n  attempt_ttl: 30m\n",
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.EqualValues(t, 9090, c.HTTP.Port)
				assert.Equal(t, 30*time.Minute, c.Quiz.AttemptTTL)
				assert.Equal(t, "quotient", c.Redis.Prefix)
			},
		},
		"env overrides file": {
			file: "redis:\n  prefix: from-file\n",
			env:  map[string]string{"QUOTIENT_REDIS_PREFIX": "from-env", "QUOTIENT_HTTP_PORT": "7070"},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, "from-env", c.Redis.Prefix)
				assert.EqualValues(t, 7070, c.HTTP.Port)
			},
		},
		"env reaches keys the file leaves out": {
			file: "quiz:\n  attempt_ttl: 45m\n",
			env:  map[string]string{"QUOTIENT_REDIS_PREFIX": "k-123"},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, "k-123", c.Redis.Prefix)
				assert.Equal(t, 45*time.Minute, c.Quiz.AttemptTTL)
				assert.Equal(t, []string{"localhost:6379"}, c.Redis.Addrs)
			},
		},
		"broken file": {
			file: "http: [",
			assert: func(t *testing.T, _ testConfig, err error) {
				assert.Error(t, err)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var file string
			if tt.file != "" {
				file = writeFile(t, tt.file)
			}

			c := defaults()
			err := config.Load(file, &c, config.WithEnvPrefix("QUOTIENT"))
			tt.assert(t, c, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c := defaults()
	err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), &c)
	assert.Error(t, err)
}
