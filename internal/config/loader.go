package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TEMPOGUARD_"
	// EnvConfigPath names the variable holding an optional YAML file path.
	EnvConfigPath = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TEMPOGUARD_CONFIG is set
//  3. env (prefix TEMPOGUARD_, "__" separates nested keys)
//
// The result is validated; inconsistent values fail here, at startup.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// TEMPOGUARD_PARTITIONS -> partitions, TEMPOGUARD_CLUSTER__TRANSPORT -> cluster.transport.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == EnvConfigPath {
			return ""
		}
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
