package api

import (
	"math"
	"time"
)

// TraitOption is one weighted choice within a layer. Weight is relative
// probability mass, normalized against the layer total at sampling time.
type TraitOption struct {
	Value  string `json:"value" yaml:"value"`
	Weight int    `json:"weight" yaml:"weight"`
}

// Layer is one independent axis of variation (color, direction, ...).
type Layer struct {
	Name    string        `json:"name" yaml:"name"`
	Options []TraitOption `json:"options" yaml:"options"`
}

// TotalWeight sums the option weights. Callers validate the layer first;
// the sum may wrap for weights that do not fit in an int.
func (l Layer) TotalWeight() int {
	total := 0
	for _, o := range l.Options {
		total += o.Weight
	}
	return total
}

// LayerSet is the ordered list of layers used for one generation run.
type LayerSet []Layer

// Combinations is the number of distinct raw identifiers the set can produce.
// Options with zero weight are unreachable and not counted. The product
// saturates at math.MaxInt.
func (s LayerSet) Combinations() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, l := range s {
		reachable := 0
		for _, o := range l.Options {
			if o.Weight > 0 {
				reachable++
			}
		}
		if reachable == 0 {
			return 0
		}
		if n > math.MaxInt/reachable {
			n = math.MaxInt
			continue
		}
		n *= reachable
	}
	return n
}

// Edition is one accepted identifier. DNA is the raw joined value; FilteredDNA
// is what uniqueness was decided on.
type Edition struct {
	Index       int    `json:"index"`
	DNA         string `json:"dna"`
	FilteredDNA string `json:"filtered_dna"`
	Digest      string `json:"digest,omitempty"`
}

// Run is a successful generation persisted with its editions.
type Run struct {
	ID          string    `json:"id"`
	LayerDigest string    `json:"layer_digest"`
	Target      int       `json:"target"`
	Tolerance   int       `json:"tolerance"`
	Duplicates  int       `json:"duplicates"`
	Delimiter   string    `json:"delimiter"`
	CreatedAt   time.Time `json:"created_at"`
	Editions    []Edition `json:"editions,omitempty"`
}

// MintRequest asks the NFT service to mint one token for a DNA.
type MintRequest struct {
	To         string            `json:"to,omitempty"`
	DNA        string            `json:"dna"`
	Collection string            `json:"collection,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Token is a minted NFT as recorded by the NFT service.
type Token struct {
	ID         uint64            `json:"id"`
	Owner      string            `json:"owner"`
	DNA        string            `json:"dna"`
	Collection string            `json:"collection,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	MintedAt   time.Time         `json:"minted_at"`
}

// CollectionRequest registers a collection in the registry.
type CollectionRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol,omitempty"`
	Description string `json:"description,omitempty"`
	Supply      int    `json:"supply,omitempty"`
}

// Collection is a registered collection.
type Collection struct {
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol,omitempty"`
	Description string    `json:"description,omitempty"`
	Supply      int       `json:"supply,omitempty"`
	Creator     string    `json:"creator"`
	CreatedAt   time.Time `json:"created_at"`
}

// AttributeSet is the attribute map attached to a collection.
type AttributeSet struct {
	Collection string            `json:"collection"`
	Attributes map[string]string `json:"attributes"`
}

// LayerRecord is a layer registered under a position number.
type LayerRecord struct {
	Number int   `json:"number"`
	Layer  Layer `json:"layer"`
}

// Session is an authenticated identity session. The private key never
// leaves the seed store; only the public half is recorded here.
type Session struct {
	Provider  string    `json:"provider"`
	Issuer    string    `json:"issuer"`
	Principal string    `json:"principal"`
	PublicKey []byte    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }
