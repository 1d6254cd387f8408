package dna

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
)

// RandomSource draws integers uniformly from [0, n). Implementations may
// assume n > 0.
type RandomSource interface {
	IntN(n int) int
}

// SourceFunc adapts a plain function to RandomSource.
type SourceFunc func(n int) int

func (f SourceFunc) IntN(n int) int { return f(n) }

type seededSource struct{ r *mrand.Rand }

// NewSeededSource returns a deterministic PCG-backed source. The same seed
// always yields the same sequence.
func NewSeededSource(seed uint64) RandomSource {
	return &seededSource{r: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededSource) IntN(n int) int { return s.r.IntN(n) }

type cryptoSource struct{}

// NewCryptoSource returns a source backed by crypto/rand.
func NewCryptoSource() RandomSource { return cryptoSource{} }

func (cryptoSource) IntN(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("dna: crypto/rand failed: %v", err))
	}
	return int(v.Int64())
}
