package dna

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mithrel/cigmint/pkg/api"
)

// State is the generation driver state.
type State int

const (
	StateRunning State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SeenSet holds accepted filtered identifiers. It only grows during a run.
type SeenSet struct {
	order   []string
	members map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{members: make(map[string]struct{})}
}

func (s *SeenSet) Has(id string) bool {
	_, ok := s.members[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	if s.Has(id) {
		return false
	}
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s *SeenSet) Len() int { return len(s.order) }

// Values returns the members in acceptance order.
func (s *SeenSet) Values() []string { return append([]string(nil), s.order...) }

// Result is the outcome of a successful run.
type Result struct {
	State      State
	Seen       *SeenSet
	Editions   []api.Edition
	Duplicates int
	Attempts   int
}

// Generator drives one generation run at a time. Zero Delimiter means
// DefaultDelimiter; nil Logger means no logging.
type Generator struct {
	Target    int
	Tolerance int
	Delimiter string
	Random    RandomSource
	Logger    *zap.Logger
}

// Run samples candidates until Target unique filtered identifiers are
// accepted or Tolerance duplicates are rejected. On failure the partial
// result is discarded and an *ExhaustionError is returned. ctx is checked
// between iterations.
func (g *Generator) Run(ctx context.Context, set api.LayerSet) (*Result, error) {
	if g.Target <= 0 {
		return nil, fmt.Errorf("target edition count must be positive, got %d", g.Target)
	}
	if g.Tolerance <= 0 {
		return nil, fmt.Errorf("failure tolerance must be positive, got %d", g.Tolerance)
	}
	if g.Random == nil {
		return nil, errors.New("random source is required")
	}
	if err := ValidateLayerSet(set); err != nil {
		return nil, err
	}
	delim := g.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	log := g.Logger
	if log == nil {
		log = zap.NewNop()
	}

	res := &Result{State: StateRunning, Seen: NewSeenSet()}
	for res.State == StateRunning {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := BuildCandidate(set, delim, g.Random)
		if err != nil {
			return nil, err
		}
		res.Attempts++
		filtered := FilterIdentifier(raw, delim)
		if res.Seen.Add(filtered) {
			ed := api.Edition{Index: res.Seen.Len(), DNA: raw, FilteredDNA: filtered}
			ed.Digest = ed.Hash()
			res.Editions = append(res.Editions, ed)
			if res.Seen.Len() >= g.Target {
				res.State = StateSucceeded
			}
			continue
		}
		res.Duplicates++
		log.Debug("DNA exists", zap.String("dna", filtered), zap.Int("duplicates", res.Duplicates))
		if res.Duplicates >= g.Tolerance {
			res.State = StateFailed
		}
	}

	if res.State == StateFailed {
		log.Warn(fmt.Sprintf("need more layers or elements to grow edition to %d", g.Target),
			zap.Int("target", g.Target),
			zap.Int("accepted", res.Seen.Len()),
			zap.Int("tolerance", g.Tolerance))
		return nil, &ExhaustionError{
			Target:     g.Target,
			Accepted:   res.Seen.Len(),
			Tolerance:  g.Tolerance,
			Duplicates: res.Duplicates,
		}
	}
	log.Debug("generation finished",
		zap.Int("editions", res.Seen.Len()),
		zap.Int("attempts", res.Attempts),
		zap.Int("duplicates", res.Duplicates))
	return res, nil
}

// GenerateUniqueEditions runs a generator with the default delimiter and
// returns the Seen Set.
func GenerateUniqueEditions(ctx context.Context, set api.LayerSet, target, tolerance int, rnd RandomSource) (*SeenSet, error) {
	g := &Generator{Target: target, Tolerance: tolerance, Random: rnd}
	res, err := g.Run(ctx, set)
	if err != nil {
		return nil, err
	}
	return res.Seen, nil
}
