package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdition_Hash(t *testing.T) {
	base := Edition{Index: 1, DNA: "red-up?bypassDNA=true", FilteredDNA: "red"}

	t.Run("identical filtered dna produce identical hashes", func(t *testing.T) {
		other := Edition{Index: 7, DNA: "red", FilteredDNA: "red"}
		assert.Equal(t, base.Hash(), other.Hash())
	})

	t.Run("different filtered dna produce different hashes", func(t *testing.T) {
		other := base
		other.FilteredDNA = "blue"
		assert.NotEqual(t, base.Hash(), other.Hash())
	})

	t.Run("hash is hex encoded 32 bytes", func(t *testing.T) {
		assert.Len(t, base.Hash(), 64)
	})
}

func TestLayerSet_Digest(t *testing.T) {
	set := LayerSet{
		{Name: "color", Options: []TraitOption{{Value: "red", Weight: 100}, {Value: "blue", Weight: 100}}},
		{Name: "animal", Options: []TraitOption{{Value: "wolf", Weight: 100}}},
	}

	t.Run("stable", func(t *testing.T) {
		assert.Equal(t, set.Digest(), set.Digest())
	})

	t.Run("weight changes the digest", func(t *testing.T) {
		other := LayerSet{
			{Name: "color", Options: []TraitOption{{Value: "red", Weight: 50}, {Value: "blue", Weight: 100}}},
			{Name: "animal", Options: []TraitOption{{Value: "wolf", Weight: 100}}},
		}
		assert.NotEqual(t, set.Digest(), other.Digest())
	})

	t.Run("layer boundaries matter", func(t *testing.T) {
		a := LayerSet{{Options: []TraitOption{{Value: "a", Weight: 1}, {Value: "b", Weight: 1}}}}
		b := LayerSet{{Options: []TraitOption{{Value: "a", Weight: 1}}}, {Options: []TraitOption{{Value: "b", Weight: 1}}}}
		assert.NotEqual(t, a.Digest(), b.Digest())
	})
}

func TestLayerSet_Combinations(t *testing.T) {
	set := LayerSet{
		{Options: []TraitOption{{Value: "red", Weight: 1}, {Value: "blue", Weight: 1}, {Value: "ghost", Weight: 0}}},
		{Options: []TraitOption{{Value: "up", Weight: 3}, {Value: "down", Weight: 1}}},
	}
	assert.Equal(t, 4, set.Combinations())
	assert.Equal(t, 0, LayerSet{}.Combinations())

	wide := make([]TraitOption, 1<<16)
	for i := range wide {
		wide[i] = TraitOption{Value: string(rune(i)), Weight: 1}
	}
	huge := LayerSet{{Options: wide}, {Options: wide}, {Options: wide}, {Options: wide}, {Options: wide}}
	assert.Equal(t, math.MaxInt, huge.Combinations())

	dead := LayerSet{{Options: wide}, {Options: []TraitOption{{Value: "x", Weight: 0}}}}
	assert.Equal(t, 0, dead.Combinations())
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}
