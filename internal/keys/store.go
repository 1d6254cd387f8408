package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SeedStore persists identity seeds by key id.
type SeedStore interface {
	Get(id string) ([]byte, error)
	Put(id string, seed []byte) error
	Delete(id string) error
}

var ErrKeyNotFound = errors.New("key not found")

// SeedID names the seed slot for an identity provider ("ii", "nfid").
func SeedID(provider string) string { return "identity/" + provider }

// LoadOrCreateSeed returns the stored seed for id, generating and storing a
// fresh 32-byte seed when none exists.
func LoadOrCreateSeed(s SeedStore, id string) (seed []byte, created bool, err error) {
	seed, err = s.Get(id)
	if err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, false, fmt.Errorf("stored seed %s has length %d", id, len(seed))
		}
		return seed, false, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, false, err
	}
	seed = make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, false, err
	}
	if err := s.Put(id, seed); err != nil {
		return nil, false, err
	}
	return seed, true, nil
}

// MemoryStore keeps base64 seeds in a map. The config key_provider uses it
// seeded from auth.seeds.
type MemoryStore struct {
	Seeds map[string]string
}

func (s *MemoryStore) Get(id string) ([]byte, error) {
	if s == nil || s.Seeds == nil {
		return nil, ErrKeyNotFound
	}
	val, ok := s.Seeds[id]
	if !ok || val == "" {
		return nil, ErrKeyNotFound
	}
	return base64.StdEncoding.DecodeString(val)
}

func (s *MemoryStore) Put(id string, seed []byte) error {
	if s.Seeds == nil {
		s.Seeds = map[string]string{}
	}
	s.Seeds[id] = base64.StdEncoding.EncodeToString(seed)
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	if s == nil || s.Seeds == nil {
		return nil
	}
	delete(s.Seeds, id)
	return nil
}
