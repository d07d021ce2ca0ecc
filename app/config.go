// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/kelseyhightower/envconfig"

	"github.com/la5nta/memorymap/cfg"
)

// EnvPrefix is the prefix of environment variables overriding config values
// (e.g. MEMMAP_BACKEND_URL).
const EnvPrefix = "MEMMAP"

// LoadConfig reads the config file at cfgPath. If it does not exist, fallback
// is written to cfgPath and returned. Environment overrides are applied to
// the result in both cases.
func LoadConfig(cfgPath string, fallback cfg.Config) (config cfg.Config, err error) {
	config, err = ReadConfig(cfgPath)
	if os.IsNotExist(err) {
		config = fallback
		if err := WriteConfig(fallback, cfgPath); err != nil {
			return config, err
		}
	} else if err != nil {
		return config, err
	}

	// Ensure zero values get a sane default
	if config.RemoteTimeout <= 0 {
		config.RemoteTimeout = cfg.DefaultConfig.RemoteTimeout
	}
	if config.NotificationDuration <= 0 {
		config.NotificationDuration = cfg.DefaultConfig.NotificationDuration
	}
	if config.Map == (cfg.MapConfig{}) {
		config.Map = cfg.DefaultConfig.Map
	}
	if config.Backend.Kind == "" {
		config.Backend.Kind = cfg.DefaultConfig.Backend.Kind
	}
	if config.Schedule == nil {
		config.Schedule = make(map[string]string)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return config, fmt.Errorf("invalid environment override: %w", err)
	}

	switch config.Backend.Kind {
	case cfg.BackendLocal, cfg.BackendSupabase:
	default:
		return config, fmt.Errorf("unknown backend kind %q", config.Backend.Kind)
	}
	return config, nil
}

func ReadConfig(path string) (config cfg.Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	err = json.Unmarshal(data, &config)
	return
}

func WriteConfig(config cfg.Config, filePath string) error {
	b, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	// Add trailing new-line
	b = append(b, '\n')

	// Ensure path dir is available
	os.MkdirAll(path.Dir(filePath), os.ModePerm|os.ModeDir)

	return os.WriteFile(filePath, b, 0o600)
}
