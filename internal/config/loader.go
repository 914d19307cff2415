package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the serving process.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string                       `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string                       `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Backend        string                       `json:"backend" yaml:"backend" toml:"backend"`
	GPUs           []int                        `json:"gpus" yaml:"gpus" toml:"gpus"`
	DeviceBlocking bool                         `json:"device_blocking" yaml:"device_blocking" toml:"device_blocking"`
	EnableMetrics  bool                         `json:"enable_metrics" yaml:"enable_metrics" toml:"enable_metrics"`
	Nice           int                          `json:"nice" yaml:"nice" toml:"nice"`
	BackendConfig  map[string]string            `json:"backend_config" yaml:"backend_config" toml:"backend_config"`
	HostPolicies   map[string]map[string]string `json:"host_policies" yaml:"host_policies" toml:"host_policies"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
