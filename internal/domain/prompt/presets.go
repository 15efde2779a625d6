package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Preset struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Prompt  string `yaml:"prompt"`
	Default bool   `yaml:"default"`
}

type Presets struct {
	Presets []Preset `yaml:"presets"`
}

func LoadPresets(path string) (Presets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Presets{}, err
	}
	return ParsePresets(b)
}

func ParsePresets(b []byte) (Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Presets{}, fmt.Errorf("parse presets: %w", err)
	}
	seen := make(map[string]struct{}, len(p.Presets))
	for i, pr := range p.Presets {
		id := strings.TrimSpace(pr.ID)
		if id == "" {
			return Presets{}, fmt.Errorf("preset #%d: id is required", i+1)
		}
		if _, dup := seen[id]; dup {
			return Presets{}, fmt.Errorf("preset %q: duplicate id", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(pr.Prompt) == "" {
			return Presets{}, fmt.Errorf("preset %q: prompt is empty", id)
		}
		p.Presets[i].ID = id
	}
	return p, nil
}

var ErrNoPreset = errors.New("no matching preset")

// Pick returns the preset with the given id, or the one marked default when id is empty.
func (p Presets) Pick(id string) (Preset, error) {
	id = strings.TrimSpace(id)
	for _, pr := range p.Presets {
		if id != "" && pr.ID == id {
			return pr, nil
		}
		if id == "" && pr.Default {
			return pr, nil
		}
	}
	if id == "" {
		return Preset{}, fmt.Errorf("%w: none marked default", ErrNoPreset)
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrNoPreset, id)
}
