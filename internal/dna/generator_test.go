package dna

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/cigmint/pkg/api"
)

func demoSet() api.LayerSet {
	opts := func(vals ...string) []api.TraitOption {
		out := make([]api.TraitOption, 0, len(vals))
		for _, v := range vals {
			out = append(out, api.TraitOption{Value: v, Weight: 100})
		}
		return out
	}
	return api.LayerSet{
		{Name: "color", Options: opts("red", "blue", "yellow")},
		{Name: "direction", Options: opts("up", "down", "left", "right")},
		{Name: "animal", Options: opts("wolf", "cow", "human", "mouse")},
	}
}

func TestGenerateTwoColors(t *testing.T) {
	set := api.LayerSet{{Options: []api.TraitOption{{Value: "red", Weight: 100}, {Value: "blue", Weight: 100}}}}
	g := &Generator{Target: 2, Tolerance: 5, Random: sequence(0, 150)}
	res, err := g.Run(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, []string{"red", "blue"}, res.Seen.Values())
	assert.Equal(t, 0, res.Duplicates)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, res.Editions, 2)
	assert.Equal(t, 1, res.Editions[0].Index)
	assert.Equal(t, res.Editions[0].Hash(), res.Editions[0].Digest)
}

func TestGenerateSingleOptionExhausts(t *testing.T) {
	set := api.LayerSet{{Options: []api.TraitOption{{Value: "only", Weight: 1}}}}
	_, err := GenerateUniqueEditions(context.Background(), set, 2, 1, sequence(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateExhaustion)

	var ex *ExhaustionError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, 1, ex.Duplicates)
	assert.Equal(t, 1, ex.Accepted)
	assert.Equal(t, 2, ex.Target)
}

func TestGenerateToleranceCountsTotalDuplicates(t *testing.T) {
	// red, red, blue, red, red: the third duplicate ends the run even though
	// an acceptance happened in between.
	set := api.LayerSet{{Options: []api.TraitOption{
		{Value: "red", Weight: 1}, {Value: "blue", Weight: 1}, {Value: "green", Weight: 1},
	}}}
	g := &Generator{Target: 3, Tolerance: 3, Random: sequence(0, 0, 1, 0, 0)}
	_, err := g.Run(context.Background(), set)
	var ex *ExhaustionError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 2, ex.Accepted)
	assert.Equal(t, 3, ex.Duplicates)
}

func TestGenerateReturnsExactlyNDistinct(t *testing.T) {
	set := demoSet()
	for seed := uint64(1); seed <= 20; seed++ {
		seen, err := GenerateUniqueEditions(context.Background(), set, 20, 1000, NewSeededSource(seed))
		require.NoError(t, err, "seed %d", seed)
		vals := seen.Values()
		require.Len(t, vals, 20)
		uniq := map[string]struct{}{}
		for _, v := range vals {
			uniq[v] = struct{}{}
		}
		assert.Len(t, uniq, 20, "seed %d", seed)
	}
}

func TestGenerateExhaustsWholeSpace(t *testing.T) {
	set := demoSet()
	seen, err := GenerateUniqueEditions(context.Background(), set, set.Combinations(), 100000, NewSeededSource(3))
	require.NoError(t, err)
	assert.Equal(t, 48, seen.Len())
}

func TestGenerateFilteredUniqueness(t *testing.T) {
	// Four raw combinations, but the second layer is rendering-only, so only
	// two filtered identifiers exist.
	set := api.LayerSet{
		{Options: []api.TraitOption{{Value: "red", Weight: 1}, {Value: "blue", Weight: 1}}},
		{Options: []api.TraitOption{{Value: "glow?bypassDNA=true", Weight: 1}, {Value: "shine?bypassDNA=1", Weight: 1}}},
	}
	g := &Generator{Target: 2, Tolerance: 50, Random: NewSeededSource(9)}
	res, err := g.Run(context.Background(), set)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"red", "blue"}, res.Seen.Values())
	for _, ed := range res.Editions {
		assert.Contains(t, ed.DNA, "?bypassDNA=")
		assert.Equal(t, FilterIdentifier(ed.DNA, "-"), ed.FilteredDNA)
	}

	g = &Generator{Target: 3, Tolerance: 50, Random: NewSeededSource(9)}
	_, err = g.Run(context.Background(), set)
	assert.ErrorIs(t, err, ErrDuplicateExhaustion)
}

func TestGenerateCustomDelimiter(t *testing.T) {
	set := api.LayerSet{
		{Options: []api.TraitOption{{Value: "red", Weight: 1}}},
		{Options: []api.TraitOption{{Value: "up", Weight: 1}}},
	}
	g := &Generator{Target: 1, Tolerance: 1, Delimiter: "/", Random: sequence(0)}
	res, err := g.Run(context.Background(), set)
	require.NoError(t, err)
	assert.Equal(t, []string{"red/up"}, res.Seen.Values())
}

func TestGenerateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	set := demoSet()
	_, err := (&Generator{Target: 0, Tolerance: 1, Random: sequence(0)}).Run(ctx, set)
	assert.Error(t, err)
	_, err = (&Generator{Target: 1, Tolerance: 0, Random: sequence(0)}).Run(ctx, set)
	assert.Error(t, err)
	_, err = (&Generator{Target: 1, Tolerance: 1}).Run(ctx, set)
	assert.Error(t, err)
	_, err = (&Generator{Target: 1, Tolerance: 1, Random: sequence(0)}).Run(ctx, api.LayerSet{})
	assert.ErrorIs(t, err, ErrEmptyLayer)
	_, err = (&Generator{Target: 1, Tolerance: 1, Random: sequence(0)}).Run(ctx, api.LayerSet{{Name: "bare"}})
	assert.ErrorIs(t, err, ErrEmptyLayer)
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Generator{Target: 5, Tolerance: 5, Random: NewSeededSource(1)}).Run(ctx, demoSet())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
}
