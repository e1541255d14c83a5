package fileloader

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ahrav/taskpulse/internal/config"
)

// EnvPrefix prefixes every environment override, e.g. TASKPULSE_STREAM_URL.
const EnvPrefix = "TASKPULSE"

var _ config.Loader = (*FileLoader)(nil)

// FileLoader loads configuration from an optional YAML file, environment
// variables and built-in defaults, in decreasing priority: env, file,
// defaults.
type FileLoader struct {
	// path is the filesystem path to the configuration file. Empty means
	// environment and defaults only.
	path string
	// lookupEnv, when set, replaces the process environment.
	lookupEnv func(string) (string, bool)
}

// NewFileLoader creates a FileLoader for path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// WithEnv replaces the process environment lookup, for tests.
func (l *FileLoader) WithEnv(lookup func(string) (string, bool)) *FileLoader {
	l.lookupEnv = lookup
	return l
}

// Load reads, merges and validates the configuration.
func (l *FileLoader) Load(ctx context.Context) (*config.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("config load cancelled: %w", err)
	}

	v := viper.New()
	for key, val := range config.Defaults() {
		v.SetDefault(key, val)
	}

	if l.path != "" {
		v.SetConfigFile(l.path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if l.lookupEnv != nil {
		for _, key := range v.AllKeys() {
			name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
			if val, ok := l.lookupEnv(name); ok {
				v.Set(key, val)
			}
		}
	} else {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
