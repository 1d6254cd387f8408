package wire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mithrel/cigmint/internal/config"
	"github.com/mithrel/cigmint/internal/db"
	"github.com/mithrel/cigmint/internal/identity"
	"github.com/mithrel/cigmint/internal/keys"
	"github.com/mithrel/cigmint/internal/remote"
)

// App aggregates the major services for easy injection.
type App struct {
	Cfg      *viper.Viper
	Log      *zap.Logger
	Store    *db.Store
	Seeds    keys.SeedStore
	Identity identity.Provider
	Remote   *remote.Client
}

// BuildApp validates the config and wires dependencies from it.
func BuildApp(ctx context.Context, v *viper.Viper) (*App, error) {
	if err := config.CheckConfigValidity(v); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := NewLogger(v.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	if v.GetString("auth.key_provider") == "keyring" && !keys.KeyringAvailable() {
		return nil, fmt.Errorf("auth.key_provider is keyring but no system keyring is available; set it to config")
	}

	dsn := config.ResolveDSN(v)
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	store, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	seeds := SeedStore(v)
	provider, err := identity.NewKeyProvider(identity.Options{
		Provider: v.GetString("auth.provider"),
		Issuers:  v.GetStringMapString("identity_providers"),
		MaxTTL:   v.GetDuration("auth.max_ttl"),
		Seeds:    seeds,
		Sessions: store.Sessions,
		Logger:   logger.Named("identity"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client := remote.New(remote.Options{
		URL:           v.GetString("remote.url"),
		Timeout:       v.GetDuration("remote.timeout"),
		IngressExpiry: v.GetDuration("remote.ingress_expiry"),
		Logger:        logger.Named("remote"),
	})

	return &App{
		Cfg:      v,
		Log:      logger,
		Store:    store,
		Seeds:    seeds,
		Identity: provider,
		Remote:   client,
	}, nil
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.Store.Close()
}

// NewLogger builds a production zap logger at level (debug|info|warn|error).
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// SeedStore picks the identity seed backend from auth.key_provider.
func SeedStore(v *viper.Viper) keys.SeedStore {
	if v.GetString("auth.key_provider") == "keyring" {
		return &keys.KeyringStore{}
	}
	ms := &keys.MemoryStore{Seeds: map[string]string{}}
	if seed := strings.TrimSpace(v.GetString("auth.seed")); seed != "" {
		ms.Seeds[keys.SeedID(v.GetString("auth.provider"))] = seed
	}
	return ms
}
