package config

import (
	"fmt"
	"os"

	"github.com/liamashdown/tokengate/internal/risk"
	"gopkg.in/yaml.v3"
)

type presetFile struct {
	Presets map[string]risk.FilterConfig `yaml:"presets"`
}

// LoadFilterPresets reads named trading-filter presets from a YAML file:
//
//	presets:
//	  default:
//	    min_liquidity: 5000
//	    min_volume: 1000
//	  strict:
//	    min_liquidity: 50000
//	    require_locked_liquidity: true
func LoadFilterPresets(path string) (map[string]risk.FilterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter presets: %w", err)
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse filter presets: %w", err)
	}

	for name, preset := range file.Presets {
		if preset.MinLiquidity < 0 || preset.MinVolume < 0 || preset.MinTokenAgeHours < 0 {
			return nil, fmt.Errorf("filter preset %q has negative thresholds", name)
		}
	}

	return file.Presets, nil
}
