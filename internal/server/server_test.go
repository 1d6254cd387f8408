package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithrel/cigmint/internal/crypto"
	"github.com/mithrel/cigmint/internal/db"
	"github.com/mithrel/cigmint/internal/identity"
	"github.com/mithrel/cigmint/internal/keys"
	"github.com/mithrel/cigmint/internal/remote"
	"github.com/mithrel/cigmint/pkg/api"
)

const (
	nftID      = "rrkah-fqaaa-aaaaa-aaaaq-cai"
	registryID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
)

type fixture struct {
	srv   *Server
	ts    *httptest.Server
	store *db.Store
	cli   *remote.Client
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := viper.New()
	cfg.Set("canisters.nft", nftID)
	cfg.Set("canisters.registry", registryID)
	srv := New(cfg, store, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &fixture{
		srv:   srv,
		ts:    ts,
		store: store,
		cli:   remote.New(remote.Options{URL: ts.URL, HTTPClient: ts.Client()}),
	}
}

func newIdentity(t *testing.T, provider string) identity.Identity {
	t.Helper()
	store, err := db.Open(context.Background(), "mem://")
	require.NoError(t, err)
	p, err := identity.NewKeyProvider(identity.Options{
		Provider: provider,
		Seeds:    &keys.MemoryStore{},
		Sessions: store.Sessions,
	})
	require.NoError(t, err)
	id, err := p.Authenticate(context.Background())
	require.NoError(t, err)
	return id
}

// signedRequest builds a raw call so tests can tamper with any part of it.
func signedRequest(t *testing.T, base string, id identity.Identity, canister, method string, body []byte, expiry time.Time, nonce string) *http.Request {
	t.Helper()
	exp := expiry.UnixNano()
	msg, err := crypto.CallPayload(crypto.CallVersion, exp, canister, method, nonce, id.Principal(), body)
	require.NoError(t, err)
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, base+remote.CallPath(canister, method), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(remote.HeaderSender, id.Principal())
	req.Header.Set(remote.HeaderSenderPubkey, base64.StdEncoding.EncodeToString(id.PublicKey()))
	req.Header.Set(remote.HeaderNonce, nonce)
	req.Header.Set(remote.HeaderIngressExpiry, strconv.FormatInt(exp, 10))
	req.Header.Set(remote.HeaderSignature, base64.StdEncoding.EncodeToString(sig))
	return req
}

func do(t *testing.T, req *http.Request) (int, remote.Reject) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var rej remote.Reject
	if resp.StatusCode >= 300 {
		require.NoError(t, remote.DecodeValue(b, &rej))
	}
	return resp.StatusCode, rej
}

func rejectCode(t *testing.T, err error) int {
	t.Helper()
	var rej *remote.RejectError
	require.True(t, errors.As(err, &rej), "expected reject, got %v", err)
	assert.ErrorIs(t, err, remote.ErrRejected)
	return rej.Code
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	resp, err := http.Get(f.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(b))
}

func TestMint(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := newIdentity(t, "ii")
	nft := remote.CreateNFTActor(f.cli, nftID, id)

	tok, err := nft.Mint(ctx, api.MintRequest{DNA: "red-up-wolf", Metadata: map[string]string{"edition": "1"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tok.ID)
	assert.Equal(t, id.Principal(), tok.Owner)
	assert.Equal(t, "1", tok.Metadata["edition"])

	stored, err := f.store.Ledger.GetToken(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, "red-up-wolf", stored.DNA)

	t.Run("duplicate dna", func(t *testing.T) {
		_, err := nft.Mint(ctx, api.MintRequest{DNA: "red-up-wolf"})
		assert.Equal(t, http.StatusConflict, rejectCode(t, err))
	})

	t.Run("empty dna", func(t *testing.T) {
		_, err := nft.Mint(ctx, api.MintRequest{})
		assert.Equal(t, http.StatusBadRequest, rejectCode(t, err))
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := nft.Mint(ctx, api.MintRequest{DNA: "blue-up-wolf", Collection: "nope"})
		assert.Equal(t, http.StatusNotFound, rejectCode(t, err))
	})

	t.Run("explicit owner", func(t *testing.T) {
		tok, err := nft.Mint(ctx, api.MintRequest{DNA: "blue-up-wolf", To: identity.Anonymous})
		require.NoError(t, err)
		assert.Equal(t, identity.Anonymous, tok.Owner)
	})
}

func TestBulkMintIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := newIdentity(t, "nfid")
	nft := remote.CreateNFTActor(f.cli, nftID, id)

	toks, err := nft.BulkMint(ctx, []api.MintRequest{{DNA: "a"}, {DNA: "b"}})
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, []uint64{1, 2}, []uint64{toks[0].ID, toks[1].ID})

	_, err = nft.BulkMint(ctx, []api.MintRequest{{DNA: "c"}, {DNA: "a"}})
	assert.Equal(t, http.StatusConflict, rejectCode(t, err))

	owned, err := f.store.Ledger.ListTokens(ctx, id.Principal())
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	_, err = nft.BulkMint(ctx, nil)
	assert.Equal(t, http.StatusBadRequest, rejectCode(t, err))

	next, err := nft.Mint(ctx, api.MintRequest{DNA: "c"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next.ID)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner := newIdentity(t, "ii")
	other := newIdentity(t, "nfid")
	reg := remote.CreateRegistryActor(f.cli, registryID, owner)

	col, err := reg.CreateCollection(ctx, api.CollectionRequest{Name: "turtles", Symbol: "TRT", Supply: 100})
	require.NoError(t, err)
	assert.Equal(t, owner.Principal(), col.Creator)

	_, err = reg.CreateCollection(ctx, api.CollectionRequest{Name: "turtles"})
	assert.Equal(t, http.StatusConflict, rejectCode(t, err))

	_, err = reg.CreateCollection(ctx, api.CollectionRequest{Name: " "})
	assert.Equal(t, http.StatusBadRequest, rejectCode(t, err))

	attrs, err := reg.SetAttributes(ctx, "turtles", map[string]string{"shell": "green"})
	require.NoError(t, err)
	attrs, err = reg.SetAttributes(ctx, "turtles", map[string]string{"eyes": "2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"shell": "green", "eyes": "2"}, attrs.Attributes)

	_, err = remote.CreateRegistryActor(f.cli, registryID, other).SetAttributes(ctx, "turtles", map[string]string{"shell": "red"})
	assert.Equal(t, http.StatusForbidden, rejectCode(t, err))

	_, err = reg.SetAttributes(ctx, "missing", map[string]string{"a": "b"})
	assert.Equal(t, http.StatusNotFound, rejectCode(t, err))

	layer := api.Layer{Name: "color", Options: []api.TraitOption{{Value: "red", Weight: 100}}}
	rec, err := reg.AddLayer(ctx, 0, layer)
	require.NoError(t, err)
	assert.Equal(t, layer, rec.Layer)

	_, err = reg.AddLayer(ctx, -1, layer)
	assert.Equal(t, http.StatusBadRequest, rejectCode(t, err))
	_, err = reg.AddLayer(ctx, 1, api.Layer{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, rejectCode(t, err))

	stored, err := f.store.Ledger.ListLayers(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRouting(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := newIdentity(t, "ii")

	err := f.cli.Invoke(ctx, registryID, remote.MethodMint, api.MintRequest{DNA: "x"}, id, nil)
	assert.Equal(t, http.StatusNotFound, rejectCode(t, err))

	err = f.cli.Invoke(ctx, "aaaaa-aa", remote.MethodMint, api.MintRequest{DNA: "x"}, id, nil)
	assert.Equal(t, http.StatusNotFound, rejectCode(t, err))
}

func TestVerifyCall(t *testing.T) {
	f := setup(t)
	id := newIdentity(t, "ii")
	body, err := remote.EncodeValue(api.MintRequest{DNA: "red"})
	require.NoError(t, err)
	future := time.Now().Add(time.Minute)

	t.Run("valid", func(t *testing.T) {
		code, _ := do(t, signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, future, uuid.NewString()))
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("replayed nonce", func(t *testing.T) {
		body, _ := remote.EncodeValue(api.MintRequest{DNA: "blue"})
		nonce := uuid.NewString()
		code, _ := do(t, signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, future, nonce))
		require.Equal(t, http.StatusOK, code)
		code, rej := do(t, signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, future, nonce))
		assert.Equal(t, http.StatusForbidden, code)
		assert.Contains(t, rej.Message, "replayed")
	})

	t.Run("tampered body", func(t *testing.T) {
		req := signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, future, uuid.NewString())
		other, _ := remote.EncodeValue(api.MintRequest{DNA: "green"})
		req.Body = io.NopCloser(bytes.NewReader(other))
		req.ContentLength = int64(len(other))
		code, rej := do(t, req)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Contains(t, rej.Message, "invalid signature")
	})

	t.Run("expired", func(t *testing.T) {
		code, rej := do(t, signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, time.Now().Add(-time.Second), uuid.NewString()))
		assert.Equal(t, http.StatusForbidden, code)
		assert.Contains(t, rej.Message, "expired")
	})

	t.Run("expiry too far out", func(t *testing.T) {
		code, _ := do(t, signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, time.Now().Add(time.Hour), uuid.NewString()))
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("sender does not match key", func(t *testing.T) {
		req := signedRequest(t, f.ts.URL, id, nftID, remote.MethodMint, body, future, uuid.NewString())
		req.Header.Set(remote.HeaderSender, identity.Anonymous)
		code, rej := do(t, req)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Contains(t, rej.Message, "does not match")
	})

	t.Run("unsigned", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.ts.URL+remote.CallPath(nftID, remote.MethodMint), bytes.NewReader(body))
		require.NoError(t, err)
		code, _ := do(t, req)
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func TestOversizedCall(t *testing.T) {
	f := setup(t)
	id := newIdentity(t, "ii")
	body := bytes.Repeat([]byte{0x0a}, maxBody+1)
	req := signedRequest(t, f.ts.URL, id, nftID, "mint", body, time.Now().Add(time.Minute), uuid.NewString())

	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var rej remote.Reject
	require.NoError(t, remote.DecodeValue(rec.Body.Bytes(), &rej))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rej.Code)
	assert.Contains(t, rej.Message, "exceeds")

	toks, err := f.store.Ledger.ListTokens(context.Background(), id.Principal())
	require.NoError(t, err)
	assert.Empty(t, toks)
}

func TestNonceExpiry(t *testing.T) {
	srv := New(viper.New(), nil, nil)
	now := time.Unix(1_700_000_000, 0)
	srv.now = func() time.Time { return now }

	assert.True(t, srv.claimNonce("n1", now.Add(time.Minute)))
	assert.False(t, srv.claimNonce("n1", now.Add(time.Minute)))

	now = now.Add(2 * time.Minute)
	assert.True(t, srv.claimNonce("n1", now.Add(time.Minute)))
	assert.Len(t, srv.nonces, 1)
}
