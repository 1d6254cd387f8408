package dna

import (
	"strings"

	"github.com/mithrel/cigmint/pkg/api"
)

// DefaultDelimiter joins per-layer values into one identifier.
const DefaultDelimiter = "-"

// BuildCandidate samples each layer once, in order, and joins the values.
func BuildCandidate(set api.LayerSet, delimiter string, rnd RandomSource) (string, error) {
	var b strings.Builder
	for i, layer := range set {
		v, err := SampleLayer(layer, rnd)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString(delimiter)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
