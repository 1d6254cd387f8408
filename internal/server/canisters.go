package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/dna"
	"github.com/mithrel/cigmint/internal/remote"
	"github.com/mithrel/cigmint/pkg/api"
)

func decode(c callContext, out any) error {
	if err := remote.DecodeValue(c.body, out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) mint(r *http.Request, c callContext) (any, error) {
	var req api.MintRequest
	if err := decode(c, &req); err != nil {
		return nil, err
	}
	return s.mintOne(r.Context(), c.caller, req)
}

// bulkMint mints every request in one transaction; one failure mints none.
func (s *Server) bulkMint(r *http.Request, c callContext) (any, error) {
	var reqs []api.MintRequest
	if err := decode(c, &reqs); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no mint requests", errBadRequest)
	}
	out := make([]api.Token, 0, len(reqs))
	err := s.store.Ledger.InTx(r.Context(), func(ctx context.Context) error {
		for i, req := range reqs {
			tok, err := s.mintOne(ctx, c.caller, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out = append(out, tok)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) mintOne(ctx context.Context, caller string, req api.MintRequest) (api.Token, error) {
	if strings.TrimSpace(req.DNA) == "" {
		return api.Token{}, fmt.Errorf("%w: dna is required", errBadRequest)
	}
	if req.Collection != "" {
		if _, err := s.store.Ledger.GetCollection(ctx, req.Collection); err != nil {
			return api.Token{}, fmt.Errorf("collection %s: %w", req.Collection, err)
		}
	}
	owner := req.To
	if owner == "" {
		owner = caller
	}
	tok, err := s.store.Ledger.MintToken(ctx, api.Token{
		Owner:      owner,
		DNA:        req.DNA,
		Collection: req.Collection,
		Metadata:   req.Metadata,
		MintedAt:   s.now().UTC(),
	})
	if err != nil {
		return api.Token{}, fmt.Errorf("mint %s: %w", req.DNA, err)
	}
	s.log.Debug("minted", zap.Uint64("token", tok.ID), zap.String("owner", owner), zap.String("dna", tok.DNA))
	return tok, nil
}

func (s *Server) createCollection(r *http.Request, c callContext) (any, error) {
	var req api.CollectionRequest
	if err := decode(c, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: collection name is required", errBadRequest)
	}
	if req.Supply < 0 {
		return nil, fmt.Errorf("%w: supply must not be negative", errBadRequest)
	}
	col, err := s.store.Ledger.CreateCollection(r.Context(), api.Collection{
		Name:        req.Name,
		Symbol:      req.Symbol,
		Description: req.Description,
		Supply:      req.Supply,
		Creator:     c.caller,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", req.Name, err)
	}
	return col, nil
}

// setAttributes merges attributes into a collection. Only its creator may
// change them.
func (s *Server) setAttributes(r *http.Request, c callContext) (any, error) {
	var in api.AttributeSet
	if err := decode(c, &in); err != nil {
		return nil, err
	}
	if in.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", errBadRequest)
	}
	for k := range in.Attributes {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: empty attribute key", errBadRequest)
		}
	}
	ctx := r.Context()
	col, err := s.store.Ledger.GetCollection(ctx, in.Collection)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", in.Collection, err)
	}
	if col.Creator != c.caller {
		return nil, fmt.Errorf("%w: only the creator of %s may set attributes", errForbidden, in.Collection)
	}
	if err := s.store.Ledger.SetAttributes(ctx, in); err != nil {
		return nil, err
	}
	return s.store.Ledger.GetAttributes(ctx, in.Collection)
}

func (s *Server) addLayer(r *http.Request, c callContext) (any, error) {
	var in api.LayerRecord
	if err := decode(c, &in); err != nil {
		return nil, err
	}
	if in.Number < 0 {
		return nil, fmt.Errorf("%w: layer number must not be negative", errBadRequest)
	}
	if err := dna.ValidateLayer(in.Layer); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.store.Ledger.PutLayer(r.Context(), in); err != nil {
		return nil, err
	}
	return in, nil
}
