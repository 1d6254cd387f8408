package dna

import (
	"fmt"
	"math"

	"github.com/mithrel/cigmint/pkg/api"
)

// ValidateLayer checks that a layer can be sampled: at least one option,
// no negative weights, a positive total weight that fits in an int.
func ValidateLayer(layer api.Layer) error {
	if len(layer.Options) == 0 {
		return fmt.Errorf("%w: layer %q has no options", ErrEmptyLayer, layer.Name)
	}
	total := 0
	for _, o := range layer.Options {
		if o.Weight < 0 {
			return fmt.Errorf("%w: layer %q option %q has weight %d", ErrInvalidWeight, layer.Name, o.Value, o.Weight)
		}
		if total > math.MaxInt-o.Weight {
			return fmt.Errorf("%w: layer %q total weight overflows at option %q", ErrInvalidWeight, layer.Name, o.Value)
		}
		total += o.Weight
	}
	if total == 0 {
		return fmt.Errorf("%w: layer %q has zero total weight", ErrEmptyLayer, layer.Name)
	}
	return nil
}

// ValidateLayerSet validates every layer and rejects an empty set.
func ValidateLayerSet(set api.LayerSet) error {
	if len(set) == 0 {
		return fmt.Errorf("%w: layer set has no layers", ErrEmptyLayer)
	}
	for _, l := range set {
		if err := ValidateLayer(l); err != nil {
			return err
		}
	}
	return nil
}

// SampleLayer picks one option value by weighted roulette: draw r in
// [0, total), walk the options subtracting each weight, and return the
// first option at which r goes negative. Integer arithmetic only.
func SampleLayer(layer api.Layer, rnd RandomSource) (string, error) {
	if err := ValidateLayer(layer); err != nil {
		return "", err
	}
	total := layer.TotalWeight()
	r := rnd.IntN(total)
	if r < 0 || r >= total {
		return "", fmt.Errorf("random source returned %d outside [0,%d)", r, total)
	}
	for _, o := range layer.Options {
		r -= o.Weight
		if r < 0 {
			return o.Value, nil
		}
	}
	// unreachable while r < total
	return "", fmt.Errorf("layer %q: roulette walked past last option", layer.Name)
}
