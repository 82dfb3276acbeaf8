// Package config loads the optional magpie.yaml run-configuration file
// named in SPEC_FULL §1.1: a GC threshold override, a core library path
// override, and a native-namespace allow-list. None of this is part of the
// language core — it only shapes how cmd/magpie constructs a vm.VM.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is magpie.yaml's shape. Every field is optional; a missing or
// absent file yields Default().
type Config struct {
	GCThresholdBytes uint64   `yaml:"gc_threshold_bytes"`
	CoreLibPath      string   `yaml:"core_lib_path"`
	NativeNamespaces []string `yaml:"native_namespaces"`
}

// Default is the configuration cmd/magpie uses when no magpie.yaml is
// found: no GC threshold override, no core-lib override (the CLI falls
// back to MAGPIE_CORE_LIB / {exeDir}/core, §6), and every native namespace
// enabled.
func Default() *Config {
	return &Config{NativeNamespaces: []string{"core", "io", "net"}}
}

// Load reads path and merges it over Default(); a missing file is not an
// error (magpie.yaml is optional), but a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if len(cfg.NativeNamespaces) == 0 {
		cfg.NativeNamespaces = Default().NativeNamespaces
	}
	return cfg, nil
}
