package remote

import (
	"context"

	"github.com/mithrel/cigmint/internal/identity"
	"github.com/mithrel/cigmint/pkg/api"
)

// Method names served by the NFT and registry canisters.
const (
	MethodMint             = "mint"
	MethodBulkMint         = "bulkMint"
	MethodCreateCollection = "createCollection"
	MethodSetAttributes    = "setAttributes"
	MethodAddLayer         = "addLayer"
)

// NFTActor is a typed handle on the NFT canister bound to one identity.
type NFTActor struct {
	client   *Client
	canister string
	id       identity.Identity
}

func CreateNFTActor(c *Client, canisterID string, id identity.Identity) *NFTActor {
	return &NFTActor{client: c, canister: canisterID, id: id}
}

// Mint mints one token for req.DNA. The owner defaults to the caller.
func (a *NFTActor) Mint(ctx context.Context, req api.MintRequest) (api.Token, error) {
	var tok api.Token
	err := a.client.Invoke(ctx, a.canister, MethodMint, req, a.id, &tok)
	return tok, err
}

// BulkMint mints every request or none of them.
func (a *NFTActor) BulkMint(ctx context.Context, reqs []api.MintRequest) ([]api.Token, error) {
	var toks []api.Token
	err := a.client.Invoke(ctx, a.canister, MethodBulkMint, reqs, a.id, &toks)
	return toks, err
}

// RegistryActor is a typed handle on the registry canister.
type RegistryActor struct {
	client   *Client
	canister string
	id       identity.Identity
}

func CreateRegistryActor(c *Client, canisterID string, id identity.Identity) *RegistryActor {
	return &RegistryActor{client: c, canister: canisterID, id: id}
}

func (a *RegistryActor) CreateCollection(ctx context.Context, req api.CollectionRequest) (api.Collection, error) {
	var col api.Collection
	err := a.client.Invoke(ctx, a.canister, MethodCreateCollection, req, a.id, &col)
	return col, err
}

// SetAttributes merges attrs into the collection's attribute map and
// returns the full map.
func (a *RegistryActor) SetAttributes(ctx context.Context, collection string, attrs map[string]string) (api.AttributeSet, error) {
	var out api.AttributeSet
	in := api.AttributeSet{Collection: collection, Attributes: attrs}
	err := a.client.Invoke(ctx, a.canister, MethodSetAttributes, in, a.id, &out)
	return out, err
}

// AddLayer registers layer at position number, replacing any previous one.
func (a *RegistryActor) AddLayer(ctx context.Context, number int, layer api.Layer) (api.LayerRecord, error) {
	var out api.LayerRecord
	in := api.LayerRecord{Number: number, Layer: layer}
	err := a.client.Invoke(ctx, a.canister, MethodAddLayer, in, a.id, &out)
	return out, err
}
