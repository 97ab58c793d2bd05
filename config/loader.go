// Package config loads auth.Options from a YAML file and the environment.
//
// Sources are applied in order, later ones overriding earlier ones:
// defaults (WithDefaults), file, environment (JWTAUTH_ prefix), explicit
// overrides. Keys left unset by every source take the auth.Options defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	auth "github.com/goliatone/go-jwtauth"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "JWTAUTH_"

// listKeys are read from the environment as comma separated values.
var listKeys = map[string]bool{
	"algorithms":      true,
	"required_claims": true,
}

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	defaults  map[string]any
	overrides map[string]any
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix. An empty prefix
// disables environment loading.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithDefaults sets values applied before every other source, e.g. the
// settings an embedding application ships with.
func WithDefaults(values map[string]any) Option {
	return func(l *Loader) {
		l.defaults = values
	}
}

// WithOverrides applies values on top of every other source, e.g. CLI flags.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads every source and returns validated options.
func (l *Loader) Load() (*auth.Options, error) {
	if len(l.defaults) > 0 {
		if err := l.k.Load(confmap.Provider(l.defaults, "."), nil); err != nil {
			return nil, fmt.Errorf("load defaults: %w", err)
		}
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load file %s: %w", l.filePath, err)
		}
	}

	if l.envPrefix != "" {
		if err := l.k.Load(env.ProviderWithValue(l.envPrefix, ".", l.envValue), nil); err != nil {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}

	if len(l.overrides) > 0 {
		if err := l.k.Load(confmap.Provider(l.overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var opts auth.Options
	if err := l.k.Unmarshal("", &opts); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return auth.NewConfig(opts)
}

// envValue maps JWTAUTH_CLAIM_NBF_DELTA to claim_nbf_delta. Keys are flat so
// underscores are kept.
func (l *Loader) envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, l.envPrefix))
	if listKeys[key] {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, value
}

// All returns the merged raw configuration.
func (l *Loader) All() map[string]any {
	return l.k.All()
}

// Load is a shortcut for NewLoader(opts...).Load().
func Load(opts ...Option) (*auth.Options, error) {
	return NewLoader(opts...).Load()
}
