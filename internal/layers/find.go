package layers

import (
	"github.com/sahilm/fuzzy"

	"github.com/mithrel/cigmint/pkg/api"
)

// Match is one fuzzy hit over "layer/value" candidates.
type Match struct {
	Layer  string
	Value  string
	Weight int
	Score  int
}

// Find fuzzy-matches query against every option of the set and returns at
// most n results, best first. n <= 0 returns all matches; an empty query
// returns every option in layer order.
func Find(set api.LayerSet, query string, n int) []Match {
	type ref struct {
		layer string
		opt   api.TraitOption
	}
	refs := make([]ref, 0)
	candidates := make([]string, 0)
	for _, l := range set {
		for _, o := range l.Options {
			refs = append(refs, ref{layer: l.Name, opt: o})
			candidates = append(candidates, l.Name+"/"+o.Value)
		}
	}
	if query == "" {
		out := make([]Match, 0, len(refs))
		for _, r := range refs {
			out = append(out, Match{Layer: r.layer, Value: r.opt.Value, Weight: r.opt.Weight})
		}
		return limit(out, n)
	}
	matches := fuzzy.Find(query, candidates)
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		r := refs[m.Index]
		out = append(out, Match{Layer: r.layer, Value: r.opt.Value, Weight: r.opt.Weight, Score: m.Score})
	}
	return limit(out, n)
}

func limit(in []Match, n int) []Match {
	if n <= 0 || len(in) <= n {
		return in
	}
	return in[:n]
}
