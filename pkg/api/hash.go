package api

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
)

// Hash returns a deterministic BLAKE3 hash of the filtered DNA. Two editions
// that collide on FilteredDNA hash identically regardless of raw DNA or index.
func (e Edition) Hash() string {
	h := blake3.New()
	h.Write([]byte(e.FilteredDNA))
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns a BLAKE3 hash over the layer names, option values and
// weights, in order. Runs record it so editions can be traced to the exact
// layer configuration that produced them.
func (s LayerSet) Digest() string {
	h := blake3.New()
	for _, l := range s {
		h.Write([]byte(l.Name))
		h.Write([]byte{0})
		for _, o := range l.Options {
			h.Write([]byte(o.Value))
			h.Write([]byte{0})
			h.Write([]byte(strconv.Itoa(o.Weight)))
			h.Write([]byte{0})
		}
		h.Write([]byte{1}) // end of layer
	}
	return hex.EncodeToString(h.Sum(nil))
}
