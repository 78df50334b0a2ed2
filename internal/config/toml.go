// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/pointcount/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Stage      StageConfig      `toml:"stage"`
	Export     ExportConfig     `toml:"export"`
	Categories []CategoryConfig `toml:"categories"`
}

// StageConfig maps stage driver settings.
type StageConfig struct {
	USBManufacturer *string  `toml:"usb-manufacturer"`
	StepDistance    *float64 `toml:"step-distance"`
	MaxStepDistance *float64 `toml:"max-step-distance"`
}

// ExportConfig maps CSV export settings.
type ExportConfig struct {
	Dir *string `toml:"dir"`
}

// CategoryConfig binds one category to a key and label.
type CategoryConfig struct {
	ID    string `toml:"id"`
	Key   string `toml:"key"`
	Label string `toml:"label"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// CategorySet builds the category bindings. No entries means the defaults.
func (c FileConfig) CategorySet() (model.CategorySet, error) {
	if len(c.Categories) == 0 {
		return model.DefaultCategorySet(), nil
	}
	bindings := make([]model.Binding, 0, len(c.Categories))
	for _, entry := range c.Categories {
		cat, err := model.ParseCategory(entry.ID)
		if err != nil {
			return model.CategorySet{}, err
		}
		bindings = append(bindings, model.Binding{Category: cat, Key: entry.Key, Label: entry.Label})
	}
	set, err := model.NewCategorySet(bindings)
	if err != nil {
		return model.CategorySet{}, fmt.Errorf("invalid categories: %w", err)
	}
	return set, nil
}
