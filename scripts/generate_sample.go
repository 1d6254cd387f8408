package main

import (
	"fmt"
	mrand "math/rand"
	"os"

	"github.com/mithrel/cigmint/internal/dna"
	"github.com/mithrel/cigmint/internal/layers"
	"github.com/mithrel/cigmint/pkg/api"
)

var pools = map[string][]string{
	"background": {"sky", "sand", "forest", "night", "ocean", "lava"},
	"body":       {"round", "tall", "slim", "stout"},
	"eyes":       {"sleepy", "wide", "angry", "happy", "wink"},
	"hat":        {"cap", "crown", "beanie", "halo"},
	"shadow":     {"soft", "hard"},
}

var order = []string{"background", "body", "eyes", "hat", "shadow"}

func main() {
	// Deterministic seed for reproducible output
	mr := mrand.New(mrand.NewSource(42))

	f := layers.File{Name: "sample", Delimiter: dna.DefaultDelimiter}
	for _, name := range order {
		l := api.Layer{Name: name}
		for _, v := range pools[name] {
			l.Options = append(l.Options, api.TraitOption{Value: v, Weight: 1 + mr.Intn(100)})
		}
		// shadow only affects rendering; keep it out of the identifier
		if name == "shadow" {
			for i := range l.Options {
				l.Options[i].Value += "?" + dna.BypassKey + "=true"
			}
		}
		// roughly a third of editions go hatless
		if name == "hat" {
			l.Options = append(l.Options, api.TraitOption{Value: "none", Weight: 150})
		}
		f.Layers = append(f.Layers, l)
	}

	if err := f.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	b, err := f.Marshal()
	if err != nil {
		panic(err)
	}
	_, _ = os.Stdout.Write(b)
}
