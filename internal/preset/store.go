package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound reports a preset name with no matching file.
var ErrNotFound = errors.New("preset not found")

// Preset overrides run settings. Nil fields leave the run's own value
// in place.
type Preset struct {
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	MaxRetries        *int              `json:"max_retries,omitempty"`
	SemanticThreshold *float64          `json:"semantic_threshold,omitempty"`
	NegativePrompt    string            `json:"negative_prompt,omitempty"`
	Params            map[string]string `json:"params,omitempty"`
}

// Validate checks field ranges after decoding.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset: name required")
	}
	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("preset %s: max_retries must not be negative", p.Name)
	}
	if p.SemanticThreshold != nil && (*p.SemanticThreshold < -1 || *p.SemanticThreshold > 1) {
		return fmt.Errorf("preset %s: semantic_threshold must be between -1 and 1", p.Name)
	}
	return nil
}

// Store reads presets from a directory of <name>.json files.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load returns the preset with the given name.
func (s *Store) Load(name string) (Preset, error) {
	var empty Preset
	name = strings.TrimSpace(name)
	if name == "" {
		return empty, fmt.Errorf("preset: name required")
	}
	if name != filepath.Base(name) {
		return empty, fmt.Errorf("preset %s: name must not contain path separators", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return empty, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return empty, fmt.Errorf("preset %s: read: %w", name, err)
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return empty, fmt.Errorf("preset %s: parse: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	if err := p.Validate(); err != nil {
		return empty, err
	}
	return p, nil
}

// List returns every readable preset, sorted by name. Files that fail
// to parse are reported together after the valid ones load.
func (s *Store) List() ([]Preset, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("preset list: %w", err)
	}
	var (
		presets []Preset
		bad     []string
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		p, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			bad = append(bad, name)
			continue
		}
		presets = append(presets, p)
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	if len(bad) > 0 {
		return presets, fmt.Errorf("preset list: unreadable presets: %s", strings.Join(bad, ", "))
	}
	return presets, nil
}
