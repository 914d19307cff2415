// Package registry discovers model configurations on disk. Each file in the
// models directory describes one model: its instance groups and warm-up
// samples, in yaml, json or toml.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"instanced/internal/common/fsutil"
	"instanced/pkg/types"
)

// LoadDir scans a directory for model configuration files (*.yaml, *.yml,
// *.json, *.toml) and decodes each into a ModelConfig. A config with no
// name takes the file base name. Results are sorted by model name.
func LoadDir(dir string) ([]types.ModelConfig, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelConfig
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		switch ext {
		case ".yaml", ".yml", ".json", ".toml":
		default:
			continue
		}
		p := filepath.Join(abs, name)
		cfg, err := loadFile(p, ext)
		if err != nil {
			return nil, fmt.Errorf("model config %s: %w", name, err)
		}
		if cfg.Name == "" {
			cfg.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		models = append(models, cfg)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func loadFile(path, ext string) (types.ModelConfig, error) {
	var cfg types.ModelConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	}
	return cfg, err
}
