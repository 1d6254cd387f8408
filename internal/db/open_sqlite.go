package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mithrel/cigmint/pkg/api"
)

type sqliteStore struct{ db *sql.DB }

func isUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}

// Runs

func (s *sqliteStore) CreateRun(ctx context.Context, r api.Run) error {
	if r.ID == "" {
		return ErrConflict
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(id, layer_digest, target, tolerance, duplicates, delimiter, created_at) VALUES(?,?,?,?,?,?,?)`,
		r.ID, r.LayerDigest, r.Target, r.Tolerance, r.Duplicates, r.Delimiter, r.CreatedAt.UTC()); err != nil {
		if isUnique(err) {
			return ErrConflict
		}
		return err
	}
	for _, e := range r.Editions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO editions(run_id, idx, dna, filtered_dna, digest) VALUES(?,?,?,?,?)`,
			r.ID, e.Index, e.DNA, e.FilteredDNA, e.Digest); err != nil {
			if isUnique(err) {
				return ErrConflict
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) GetRun(ctx context.Context, id string) (api.Run, error) {
	var r api.Run
	row := s.db.QueryRowContext(ctx, `SELECT id, layer_digest, target, tolerance, duplicates, delimiter, created_at FROM runs WHERE id=?`, id)
	if err := row.Scan(&r.ID, &r.LayerDigest, &r.Target, &r.Tolerance, &r.Duplicates, &r.Delimiter, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Run{}, ErrNotFound
		}
		return api.Run{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT idx, dna, filtered_dna, digest FROM editions WHERE run_id=? ORDER BY idx ASC`, id)
	if err != nil {
		return api.Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e api.Edition
		if err := rows.Scan(&e.Index, &e.DNA, &e.FilteredDNA, &e.Digest); err != nil {
			return api.Run{}, err
		}
		r.Editions = append(r.Editions, e)
	}
	return r, rows.Err()
}

func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]api.Run, error) {
	q := `SELECT id, layer_digest, target, tolerance, duplicates, delimiter, created_at FROM runs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []api.Run
	for rows.Next() {
		var r api.Run
		if err := rows.Scan(&r.ID, &r.LayerDigest, &r.Target, &r.Tolerance, &r.Duplicates, &r.Delimiter, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sessions

func (s *sqliteStore) PutSession(ctx context.Context, ses api.Session) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions(provider, issuer, principal, public_key, created_at, expires_at) VALUES(?,?,?,?,?,?)
ON CONFLICT(provider) DO UPDATE SET issuer=excluded.issuer, principal=excluded.principal, public_key=excluded.public_key, created_at=excluded.created_at, expires_at=excluded.expires_at`,
		ses.Provider, ses.Issuer, ses.Principal, ses.PublicKey, ses.CreatedAt.UTC(), ses.ExpiresAt.UTC())
	return err
}

func (s *sqliteStore) GetSession(ctx context.Context, provider string) (api.Session, error) {
	var ses api.Session
	row := s.db.QueryRowContext(ctx, `SELECT provider, issuer, principal, public_key, created_at, expires_at FROM sessions WHERE provider=?`, provider)
	if err := row.Scan(&ses.Provider, &ses.Issuer, &ses.Principal, &ses.PublicKey, &ses.CreatedAt, &ses.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Session{}, ErrNotFound
		}
		return api.Session{}, err
	}
	return ses, nil
}

func (s *sqliteStore) DeleteSession(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE provider=?`, provider)
	return err
}

// Ledger

func (s *sqliteStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) MintToken(ctx context.Context, t api.Token) (api.Token, error) {
	if t.MintedAt.IsZero() {
		t.MintedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return api.Token{}, err
	}
	res, err := conn(ctx, s.db).ExecContext(ctx, `INSERT INTO tokens(owner, dna, collection, metadata, minted_at) VALUES(?,?,?,?,?)`,
		t.Owner, t.DNA, t.Collection, string(meta), t.MintedAt.UTC())
	if err != nil {
		if isUnique(err) {
			return api.Token{}, ErrConflict
		}
		return api.Token{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return api.Token{}, err
	}
	t.ID = uint64(id)
	return t, nil
}

func scanToken(sc interface{ Scan(...any) error }) (api.Token, error) {
	var t api.Token
	var id int64
	var meta string
	if err := sc.Scan(&id, &t.Owner, &t.DNA, &t.Collection, &meta, &t.MintedAt); err != nil {
		return api.Token{}, err
	}
	t.ID = uint64(id)
	_ = json.Unmarshal([]byte(meta), &t.Metadata)
	return t, nil
}

func (s *sqliteStore) GetToken(ctx context.Context, id uint64) (api.Token, error) {
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT id, owner, dna, collection, metadata, minted_at FROM tokens WHERE id=?`, int64(id))
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Token{}, ErrNotFound
	}
	return t, err
}

func (s *sqliteStore) ListTokens(ctx context.Context, owner string) ([]api.Token, error) {
	q := `SELECT id, owner, dna, collection, metadata, minted_at FROM tokens`
	args := []any{}
	if owner != "" {
		q += ` WHERE owner=?`
		args = append(args, owner)
	}
	q += ` ORDER BY id ASC`
	rows, err := conn(ctx, s.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []api.Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateCollection(ctx context.Context, c api.Collection) (api.Collection, error) {
	if strings.TrimSpace(c.Name) == "" {
		return api.Collection{}, ErrConflict
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := conn(ctx, s.db).ExecContext(ctx, `INSERT INTO collections(name, symbol, description, supply, creator, created_at) VALUES(?,?,?,?,?,?)`,
		c.Name, c.Symbol, c.Description, c.Supply, c.Creator, c.CreatedAt.UTC())
	if err != nil {
		if isUnique(err) {
			return api.Collection{}, ErrConflict
		}
		return api.Collection{}, err
	}
	return c, nil
}

func (s *sqliteStore) GetCollection(ctx context.Context, name string) (api.Collection, error) {
	var c api.Collection
	row := conn(ctx, s.db).QueryRowContext(ctx, `SELECT name, symbol, description, supply, creator, created_at FROM collections WHERE name=?`, name)
	if err := row.Scan(&c.Name, &c.Symbol, &c.Description, &c.Supply, &c.Creator, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.Collection{}, ErrNotFound
		}
		return api.Collection{}, err
	}
	return c, nil
}

func (s *sqliteStore) SetAttributes(ctx context.Context, a api.AttributeSet) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.GetCollection(ctx, a.Collection); err != nil {
			return err
		}
		for k, v := range a.Attributes {
			if _, err := conn(ctx, s.db).ExecContext(ctx, `INSERT INTO attributes(collection, key, value) VALUES(?,?,?)
ON CONFLICT(collection, key) DO UPDATE SET value=excluded.value`, a.Collection, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteStore) GetAttributes(ctx context.Context, collection string) (api.AttributeSet, error) {
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return api.AttributeSet{}, err
	}
	rows, err := conn(ctx, s.db).QueryContext(ctx, `SELECT key, value FROM attributes WHERE collection=?`, collection)
	if err != nil {
		return api.AttributeSet{}, err
	}
	defer rows.Close()
	out := api.AttributeSet{Collection: collection, Attributes: map[string]string{}}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return api.AttributeSet{}, err
		}
		out.Attributes[k] = v
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutLayer(ctx context.Context, l api.LayerRecord) error {
	opts, err := json.Marshal(l.Layer.Options)
	if err != nil {
		return err
	}
	_, err = conn(ctx, s.db).ExecContext(ctx, `INSERT INTO layers(number, name, options) VALUES(?,?,?)
ON CONFLICT(number) DO UPDATE SET name=excluded.name, options=excluded.options`, l.Number, l.Layer.Name, string(opts))
	return err
}

func (s *sqliteStore) ListLayers(ctx context.Context) ([]api.LayerRecord, error) {
	rows, err := conn(ctx, s.db).QueryContext(ctx, `SELECT number, name, options FROM layers ORDER BY number ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []api.LayerRecord{}
	for rows.Next() {
		var l api.LayerRecord
		var opts string
		if err := rows.Scan(&l.Number, &l.Layer.Name, &opts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &l.Layer.Options); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func openSQLite(ctx context.Context, dsn string) (*Store, io.Closer, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	// one connection keeps the pragmas below in effect for every statement
	dbh.SetMaxOpenConns(1)
	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA foreign_keys=ON;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := dbh.ExecContext(ctx, pragma); err != nil {
			_ = dbh.Close()
			return nil, nil, err
		}
	}
	if err := migrate(ctx, dbh); err != nil {
		_ = dbh.Close()
		return nil, nil, err
	}
	s := &sqliteStore{db: dbh}
	return &Store{Runs: s, Sessions: s, Ledger: s}, dbh, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  layer_digest TEXT NOT NULL,
  target INTEGER NOT NULL,
  tolerance INTEGER NOT NULL,
  duplicates INTEGER NOT NULL,
  delimiter TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC, id);
CREATE TABLE IF NOT EXISTS editions (
  run_id TEXT NOT NULL,
  idx INTEGER NOT NULL,
  dna TEXT NOT NULL,
  filtered_dna TEXT NOT NULL,
  digest TEXT NOT NULL,
  PRIMARY KEY(run_id, idx),
  UNIQUE(run_id, filtered_dna),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS sessions (
  provider TEXT PRIMARY KEY,
  issuer TEXT NOT NULL,
  principal TEXT NOT NULL,
  public_key BLOB NOT NULL,
  created_at TIMESTAMP NOT NULL,
  expires_at TIMESTAMP NOT NULL
);
-- Local replica ledger
CREATE TABLE IF NOT EXISTS tokens (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  owner TEXT NOT NULL,
  dna TEXT NOT NULL,
  collection TEXT NOT NULL DEFAULT '',
  metadata TEXT NOT NULL DEFAULT 'null',
  minted_at TIMESTAMP NOT NULL,
  UNIQUE(collection, dna)
);
CREATE INDEX IF NOT EXISTS idx_tokens_owner ON tokens(owner, id);
CREATE TABLE IF NOT EXISTS collections (
  name TEXT PRIMARY KEY,
  symbol TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  supply INTEGER NOT NULL DEFAULT 0,
  creator TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS attributes (
  collection TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY(collection, key),
  FOREIGN KEY(collection) REFERENCES collections(name) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS layers (
  number INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  options TEXT NOT NULL
);
`)
	return err
}
