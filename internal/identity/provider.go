package identity

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/crypto"
	"github.com/mithrel/cigmint/internal/db"
	"github.com/mithrel/cigmint/internal/keys"
	"github.com/mithrel/cigmint/pkg/api"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
)

// DefaultMaxTTL caps a session at one day.
const DefaultMaxTTL = 24 * time.Hour

// DefaultIssuers maps provider names to their authorize URLs.
var DefaultIssuers = map[string]string{
	"ii":   "https://identity.ic0.app/#authorize",
	"nfid": "https://nfid.one/authenticate/?applicationName=SpaceTurtle&applicationLogo=https://flutter.dev/images/flutter-logo-sharing.png#authorize",
}

// Identity is an authenticated caller able to sign remote calls.
type Identity struct {
	Session api.Session
	priv    ed25519.PrivateKey
}

func (i Identity) Principal() string {
	if i.priv == nil {
		return Anonymous
	}
	return i.Session.Principal
}

func (i Identity) PublicKey() ed25519.PublicKey { return ed25519.PublicKey(i.Session.PublicKey) }

// Sign signs payload with the session key.
func (i Identity) Sign(payload []byte) ([]byte, error) {
	if i.priv == nil {
		return nil, ErrNotAuthenticated
	}
	return crypto.Sign(i.priv, payload)
}

// Provider is the identity capability the CLI authenticates through.
type Provider interface {
	Authenticate(ctx context.Context) (Identity, error)
	Current(ctx context.Context) (Identity, error)
	Logout(ctx context.Context) error
}

// Options configures a KeyProvider.
type Options struct {
	Provider string
	Issuers  map[string]string
	MaxTTL   time.Duration
	Seeds    keys.SeedStore
	Sessions db.SessionRepo
	Now      func() time.Time
	Logger   *zap.Logger
}

// KeyProvider authenticates with a locally held Ed25519 key whose seed lives
// in a SeedStore. Sessions are persisted so a still-valid session is reused.
type KeyProvider struct {
	opts Options
}

func NewKeyProvider(opts Options) (*KeyProvider, error) {
	if opts.Issuers == nil {
		opts.Issuers = DefaultIssuers
	}
	if _, ok := opts.Issuers[opts.Provider]; !ok {
		return nil, fmt.Errorf("unknown identity provider %q", opts.Provider)
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = DefaultMaxTTL
	}
	if opts.Seeds == nil || opts.Sessions == nil {
		return nil, errors.New("identity: seed store and session repo are required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &KeyProvider{opts: opts}, nil
}

// Authenticate returns the current session when still valid, otherwise
// opens a new one lasting MaxTTL.
func (p *KeyProvider) Authenticate(ctx context.Context) (Identity, error) {
	id, err := p.Current(ctx)
	if err == nil {
		p.opts.Logger.Debug("reusing session", zap.String("principal", id.Principal()), zap.Time("expires_at", id.Session.ExpiresAt))
		return id, nil
	}
	if !errors.Is(err, ErrNotAuthenticated) && !errors.Is(err, ErrSessionExpired) {
		return Identity{}, err
	}

	seed, created, err := keys.LoadOrCreateSeed(p.opts.Seeds, keys.SeedID(p.opts.Provider))
	if err != nil {
		return Identity{}, fmt.Errorf("load identity seed: %w", err)
	}
	priv, err := crypto.KeyFromSeed(seed)
	if err != nil {
		return Identity{}, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	principal, err := SelfAuthenticating(pub)
	if err != nil {
		return Identity{}, err
	}
	now := p.opts.Now().UTC()
	ses := api.Session{
		Provider:  p.opts.Provider,
		Issuer:    p.opts.Issuers[p.opts.Provider],
		Principal: principal,
		PublicKey: []byte(pub),
		CreatedAt: now,
		ExpiresAt: now.Add(p.opts.MaxTTL),
	}
	if err := p.opts.Sessions.PutSession(ctx, ses); err != nil {
		return Identity{}, fmt.Errorf("store session: %w", err)
	}
	p.opts.Logger.Info("authenticated",
		zap.String("provider", ses.Provider),
		zap.String("principal", principal),
		zap.Bool("new_key", created),
		zap.Time("expires_at", ses.ExpiresAt))
	return Identity{Session: ses, priv: priv}, nil
}

// Current returns the stored session identity without creating one.
func (p *KeyProvider) Current(ctx context.Context) (Identity, error) {
	ses, err := p.opts.Sessions.GetSession(ctx, p.opts.Provider)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Identity{}, ErrNotAuthenticated
		}
		return Identity{}, err
	}
	if ses.Expired(p.opts.Now()) {
		return Identity{}, ErrSessionExpired
	}
	seed, err := p.opts.Seeds.Get(keys.SeedID(p.opts.Provider))
	if err != nil {
		if errors.Is(err, keys.ErrKeyNotFound) {
			return Identity{}, ErrNotAuthenticated
		}
		return Identity{}, err
	}
	priv, err := crypto.KeyFromSeed(seed)
	if err != nil {
		return Identity{}, err
	}
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), ses.PublicKey) {
		// seed rotated underneath the session
		return Identity{}, ErrSessionExpired
	}
	return Identity{Session: ses, priv: priv}, nil
}

// Logout drops the session. The seed stays so the principal is stable
// across logins.
func (p *KeyProvider) Logout(ctx context.Context) error {
	return p.opts.Sessions.DeleteSession(ctx, p.opts.Provider)
}
