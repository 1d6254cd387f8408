package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mithrel/cigmint/pkg/api"
)

// memStore backs every repo with maps. InTx snapshots the ledger and
// restores it if fn fails; txMu serializes transactions.
type memStore struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	runs     map[string]api.Run
	sessions map[string]api.Session
	ledger   memLedger
}

type memLedger struct {
	nextToken   uint64
	tokens      map[uint64]api.Token
	dnaIndex    map[string]uint64
	collections map[string]api.Collection
	attributes  map[string]map[string]string
	layers      map[int]api.LayerRecord
}

func newMemLedger() memLedger {
	return memLedger{
		nextToken:   1,
		tokens:      make(map[uint64]api.Token),
		dnaIndex:    make(map[string]uint64),
		collections: make(map[string]api.Collection),
		attributes:  make(map[string]map[string]string),
		layers:      make(map[int]api.LayerRecord),
	}
}

func (l memLedger) clone() memLedger {
	out := memLedger{
		nextToken:   l.nextToken,
		tokens:      make(map[uint64]api.Token, len(l.tokens)),
		dnaIndex:    make(map[string]uint64, len(l.dnaIndex)),
		collections: make(map[string]api.Collection, len(l.collections)),
		attributes:  make(map[string]map[string]string, len(l.attributes)),
		layers:      make(map[int]api.LayerRecord, len(l.layers)),
	}
	for k, v := range l.tokens {
		out.tokens[k] = v
	}
	for k, v := range l.dnaIndex {
		out.dnaIndex[k] = v
	}
	for k, v := range l.collections {
		out.collections[k] = v
	}
	for k, v := range l.attributes {
		out.attributes[k] = copyMap(v)
	}
	for k, v := range l.layers {
		out.layers[k] = v
	}
	return out
}

func newMemStore() *memStore {
	return &memStore{
		runs:     make(map[string]api.Run),
		sessions: make(map[string]api.Session),
		ledger:   newMemLedger(),
	}
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func dnaKey(collection, dna string) string { return collection + "\x00" + dna }

// Runs

func (m *memStore) CreateRun(ctx context.Context, r api.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		return ErrConflict
	}
	if _, ok := m.runs[r.ID]; ok {
		return ErrConflict
	}
	r.Editions = append([]api.Edition(nil), r.Editions...)
	m.runs[r.ID] = r
	return nil
}

func (m *memStore) GetRun(ctx context.Context, id string) (api.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return api.Run{}, ErrNotFound
	}
	r.Editions = append([]api.Edition(nil), r.Editions...)
	return r, nil
}

func (m *memStore) ListRuns(ctx context.Context, limit int) ([]api.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.Run, 0, len(m.runs))
	for _, r := range m.runs {
		r.Editions = nil
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sessions

func (m *memStore) PutSession(ctx context.Context, s api.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Provider] = s
	return nil
}

func (m *memStore) GetSession(ctx context.Context, provider string) (api.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[provider]
	if !ok {
		return api.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) DeleteSession(ctx context.Context, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, provider)
	return nil
}

// Ledger

type memTxKey struct{}

// exclusive serializes a ledger write against running transactions unless
// ctx already belongs to one.
func (m *memStore) exclusive(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.RLock()
	snap := m.ledger.clone()
	m.mu.RUnlock()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.ledger = snap
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) MintToken(ctx context.Context, t api.Token) (api.Token, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	key := dnaKey(t.Collection, t.DNA)
	if _, ok := m.ledger.dnaIndex[key]; ok {
		return api.Token{}, ErrConflict
	}
	t.ID = m.ledger.nextToken
	m.ledger.nextToken++
	if t.MintedAt.IsZero() {
		t.MintedAt = time.Now().UTC()
	}
	t.Metadata = copyMap(t.Metadata)
	m.ledger.tokens[t.ID] = t
	m.ledger.dnaIndex[key] = t.ID
	return t, nil
}

func (m *memStore) GetToken(ctx context.Context, id uint64) (api.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.ledger.tokens[id]
	if !ok {
		return api.Token{}, ErrNotFound
	}
	t.Metadata = copyMap(t.Metadata)
	return t, nil
}

func (m *memStore) ListTokens(ctx context.Context, owner string) ([]api.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.Token, 0)
	for _, t := range m.ledger.tokens {
		if owner != "" && t.Owner != owner {
			continue
		}
		t.Metadata = copyMap(t.Metadata)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateCollection(ctx context.Context, c api.Collection) (api.Collection, error) {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(c.Name) == "" {
		return api.Collection{}, ErrConflict
	}
	if _, ok := m.ledger.collections[c.Name]; ok {
		return api.Collection{}, ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.ledger.collections[c.Name] = c
	return c, nil
}

func (m *memStore) GetCollection(ctx context.Context, name string) (api.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.ledger.collections[name]
	if !ok {
		return api.Collection{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) SetAttributes(ctx context.Context, a api.AttributeSet) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ledger.collections[a.Collection]; !ok {
		return ErrNotFound
	}
	cur := m.ledger.attributes[a.Collection]
	if cur == nil {
		cur = make(map[string]string, len(a.Attributes))
	}
	for k, v := range a.Attributes {
		cur[k] = v
	}
	m.ledger.attributes[a.Collection] = cur
	return nil
}

func (m *memStore) GetAttributes(ctx context.Context, collection string) (api.AttributeSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.ledger.collections[collection]; !ok {
		return api.AttributeSet{}, ErrNotFound
	}
	attrs := copyMap(m.ledger.attributes[collection])
	if attrs == nil {
		attrs = map[string]string{}
	}
	return api.AttributeSet{Collection: collection, Attributes: attrs}, nil
}

func (m *memStore) PutLayer(ctx context.Context, l api.LayerRecord) error {
	defer m.exclusive(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	l.Layer.Options = append([]api.TraitOption(nil), l.Layer.Options...)
	m.ledger.layers[l.Number] = l
	return nil
}

func (m *memStore) ListLayers(ctx context.Context) ([]api.LayerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.LayerRecord, 0, len(m.ledger.layers))
	for _, l := range m.ledger.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
