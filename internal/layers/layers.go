package layers

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mithrel/cigmint/internal/dna"
	"github.com/mithrel/cigmint/pkg/api"
)

// File is the on-disk layer definition. JSON files parse too since the
// decoder is YAML.
type File struct {
	Name      string       `yaml:"name,omitempty" json:"name,omitempty"`
	Delimiter string       `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Layers    api.LayerSet `yaml:"layers" json:"layers"`
}

var ErrDuplicateOption = errors.New("duplicate option value")

// Load reads and validates a layer file.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Parse(b)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a layer file body.
func Parse(b []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("decode layers: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks every layer can be sampled and that no layer repeats an
// option value.
func (f File) Validate() error {
	if err := dna.ValidateLayerSet(f.Layers); err != nil {
		return err
	}
	for i, l := range f.Layers {
		seen := make(map[string]struct{}, len(l.Options))
		for _, o := range l.Options {
			if strings.TrimSpace(o.Value) == "" {
				return fmt.Errorf("layer %d (%q): option with empty value", i, l.Name)
			}
			if _, ok := seen[o.Value]; ok {
				return fmt.Errorf("%w: layer %d (%q) repeats %q", ErrDuplicateOption, i, l.Name, o.Value)
			}
			seen[o.Value] = struct{}{}
		}
	}
	return nil
}

// Marshal renders the file as YAML.
func (f File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Builtin is the demo set: three colors, four directions, four animals,
// every option weighted 100.
func Builtin() File {
	even := func(vals ...string) []api.TraitOption {
		out := make([]api.TraitOption, 0, len(vals))
		for _, v := range vals {
			out = append(out, api.TraitOption{Value: v, Weight: 100})
		}
		return out
	}
	return File{
		Name:      "builtin",
		Delimiter: dna.DefaultDelimiter,
		Layers: api.LayerSet{
			{Name: "color", Options: even("red", "blue", "yellow")},
			{Name: "direction", Options: even("up", "down", "left", "right")},
			{Name: "animal", Options: even("wolf", "cow", "human", "mouse")},
		},
	}
}

// Resolve loads path, or returns Builtin when path is empty.
func Resolve(path string) (File, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}
	return Load(path)
}
