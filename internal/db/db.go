package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mithrel/cigmint/pkg/api"
)

// RunRepo stores successful generation runs and their editions.
type RunRepo interface {
	CreateRun(ctx context.Context, r api.Run) error
	GetRun(ctx context.Context, id string) (api.Run, error)
	// ListRuns returns runs newest first, without editions.
	ListRuns(ctx context.Context, limit int) ([]api.Run, error)
}

// SessionRepo stores identity sessions keyed by provider.
type SessionRepo interface {
	PutSession(ctx context.Context, s api.Session) error
	GetSession(ctx context.Context, provider string) (api.Session, error)
	DeleteSession(ctx context.Context, provider string) error
}

// LedgerRepo is the state behind the local replica's NFT and registry
// services.
type LedgerRepo interface {
	// InTx runs fn so that every ledger write inside it commits or rolls
	// back together.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	MintToken(ctx context.Context, t api.Token) (api.Token, error)
	GetToken(ctx context.Context, id uint64) (api.Token, error)
	ListTokens(ctx context.Context, owner string) ([]api.Token, error)
	CreateCollection(ctx context.Context, c api.Collection) (api.Collection, error)
	GetCollection(ctx context.Context, name string) (api.Collection, error)
	SetAttributes(ctx context.Context, a api.AttributeSet) error
	GetAttributes(ctx context.Context, collection string) (api.AttributeSet, error)
	PutLayer(ctx context.Context, l api.LayerRecord) error
	ListLayers(ctx context.Context) ([]api.LayerRecord, error)
}

// Store groups the repositories behind one backend.
type Store struct {
	Runs     RunRepo
	Sessions SessionRepo
	Ledger   LedgerRepo
	closer   io.Closer
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Open returns a Store for dsn: "sqlite://path" or "mem://" (also "").
func Open(ctx context.Context, dsn string) (*Store, error) {
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "mem://"):
		m := newMemStore()
		return &Store{Runs: m, Sessions: m, Ledger: m}, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		st, closer, err := openSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		st.closer = closer
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported db url %q", dsn)
	}
}

func (s *Store) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
