package layers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/cigmint/internal/dna"
	"github.com/mithrel/cigmint/pkg/api"
)

const sampleYAML = `name: turtles
delimiter: "_"
layers:
  - name: shell
    options:
      - value: green
        weight: 70
      - value: gold
        weight: 30
  - name: hat
    options:
      - value: none
        weight: 90
      - value: crown?bypassDNA=true
        weight: 10
`

func TestParseYAML(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	want := File{
		Name:      "turtles",
		Delimiter: "_",
		Layers: api.LayerSet{
			{Name: "shell", Options: []api.TraitOption{{Value: "green", Weight: 70}, {Value: "gold", Weight: 30}}},
			{Name: "hat", Options: []api.TraitOption{{Value: "none", Weight: 90}, {Value: "crown?bypassDNA=true", Weight: 10}}},
		},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSON(t *testing.T) {
	body := `{"layers":[{"name":"color","options":[{"value":"red","weight":1},{"value":"blue","weight":2}]}]}`
	f, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, f.Layers, 1)
	assert.Equal(t, 3, f.Layers[0].TotalWeight())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		is   error
	}{
		{"no layers", "name: x\n", dna.ErrEmptyLayer},
		{"layer without options", "layers:\n  - name: a\n", dna.ErrEmptyLayer},
		{"zero weights", "layers:\n  - name: a\n    options:\n      - value: x\n        weight: 0\n", dna.ErrEmptyLayer},
		{"negative weight", "layers:\n  - name: a\n    options:\n      - value: x\n        weight: 3\n      - value: y\n        weight: -1\n", dna.ErrInvalidWeight},
		{"duplicate value", "layers:\n  - name: a\n    options:\n      - value: x\n        weight: 1\n      - value: x\n        weight: 1\n", ErrDuplicateOption},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			assert.ErrorIs(t, err, tc.is)
		})
	}
	_, err := Parse([]byte("layers: [unterminated"))
	assert.Error(t, err)
}

func TestLoadAndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)

	out, err := f.Marshal()
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	if diff := cmp.Diff(f, again); diff != "" {
		t.Fatalf("marshal changed the file (-first +second):\n%s", diff)
	}

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestResolveBuiltin(t *testing.T) {
	f, err := Resolve("")
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	assert.Equal(t, 48, f.Layers.Combinations())
	assert.Equal(t, "-", f.Delimiter)
}

func TestFind(t *testing.T) {
	set := Builtin().Layers

	got := Find(set, "wlf", 5)
	require.NotEmpty(t, got)
	assert.Equal(t, "animal", got[0].Layer)
	assert.Equal(t, "wolf", got[0].Value)

	all := Find(set, "", 0)
	assert.Len(t, all, 11)
	assert.Equal(t, "red", all[0].Value)

	assert.Len(t, Find(set, "", 3), 3)
	assert.Empty(t, Find(set, "zzzz", 0))
}
