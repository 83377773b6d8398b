package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/OCAP2/datamaps/pkg/core"
)

// LoadMapConfig reads a map definition from a .json, .yaml or .yml file
func LoadMapConfig(path string) (*core.MapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading map definition: %w", err)
	}
	return ParseMapConfig(data, filepath.Ext(path))
}

// ParseMapConfig decodes a map definition; ext selects the format
func ParseMapConfig(data []byte, ext string) (*core.MapConfig, error) {
	var cfg core.MapConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing map definition: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing map definition: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported map definition format %q", ext)
	}

	if cfg.ID == "" {
		cfg.ID = cfg.PageName
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("map definition has neither id nor pageName")
	}
	cfg.NormaliseBackgrounds()
	return &cfg, nil
}
