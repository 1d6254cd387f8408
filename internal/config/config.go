package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// applyDefaults seeds Viper with defaults defined in GetConfigOptions.
func applyDefaults(v *viper.Viper) {
	for _, o := range GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
}

// Load resolves configuration with precedence: defaults < file < env.
// The provided Viper instance is mutated with defaults, file contents, and env.
func Load(ctx context.Context, v *viper.Viper) error {
	// If SetConfigFile was provided upstream it takes precedence; these
	// paths are fallbacks.
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "cigmint"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cigmint"))
		}
		v.AddConfigPath(".")
	}

	applyDefaults(v)

	// Missing file is fine; defaults and env still apply.
	_ = v.ReadInConfig()

	// CIGMINT_GENERATE_EDITION_SIZE etc.
	v.SetEnvPrefix("cigmint")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetString("data_dir") == "" {
		v.Set("data_dir", defaultDataDir())
	}
	return nil
}

// defaultDataDir resolves default data dir: $XDG_DATA_HOME/cigmint or ~/.local/share/cigmint
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "cigmint")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "cigmint")
}

// DefaultConfigPath resolves the standard config.toml location.
func DefaultConfigPath() string {
	xdg := os.Getenv("XDG_CONFIG_HOME")
	if xdg == "" {
		home, _ := os.UserHomeDir()
		xdg = filepath.Join(home, ".config")
	}
	return filepath.Join(xdg, "cigmint", "config.toml")
}

type ConfigOption struct {
	Key     string
	Default any
	Comment string
}

// GetConfigOptions returns the default configuration options and their meanings.
func GetConfigOptions() []ConfigOption {
	return []ConfigOption{
		{Key: "data_dir", Default: defaultDataDir(), Comment: "Directory for local state; DB is data_dir/cigmint.db"},
		{Key: "db_url", Default: "", Comment: "Store DSN override: sqlite://path or mem://"},

		{Key: "log.level", Default: "info", Comment: "Log level: debug, info, warn, error"},

		{Key: "generate.edition_size", Default: 20, Comment: "Number of unique editions to generate"},
		{Key: "generate.tolerance", Default: 5, Comment: "Duplicate draws tolerated before giving up"},
		{Key: "generate.delimiter", Default: "-", Comment: "Separator between trait values in a DNA string"},
		{Key: "generate.seed", Default: 0, Comment: "0 draws from crypto/rand; any other value makes runs reproducible"},

		{Key: "layers.file", Default: "", Comment: "YAML or JSON layer file; empty uses the builtin demo layers"},

		{Key: "auth.provider", Default: "ii", Comment: "Identity provider: ii or nfid"},
		{Key: "auth.max_ttl", Default: "24h", Comment: "Maximum session lifetime"},
		{Key: "auth.key_provider", Default: "config", Comment: "Where the identity seed lives: config or keyring"},
		{Key: "auth.seed", Default: "", Comment: "Base64 identity seed when key_provider = config (written on first login)"},

		{Key: "identity_providers.ii", Default: "https://identity.ic0.app/#authorize", Comment: "Internet Identity authorize URL"},
		{Key: "identity_providers.nfid", Default: "https://nfid.one/authenticate/?applicationName=SpaceTurtle&applicationLogo=https://flutter.dev/images/flutter-logo-sharing.png#authorize", Comment: "NFID authorize URL"},

		{Key: "remote.url", Default: "http://127.0.0.1:4943", Comment: "Replica base URL"},
		{Key: "remote.timeout", Default: "20s", Comment: "HTTP timeout for remote calls"},
		{Key: "remote.ingress_expiry", Default: "5m", Comment: "How long a signed call stays valid"},

		{Key: "canisters.nft", Default: "rrkah-fqaaa-aaaaa-aaaaq-cai", Comment: "NFT canister id"},
		{Key: "canisters.registry", Default: "ryjl3-tyaaa-aaaaa-aaaba-cai", Comment: "Registry canister id"},

		{Key: "server.addr", Default: ":4943", Comment: "Listen address for cigmint-cli serve"},

		{Key: "output.format", Default: "plain", Comment: "Default output: plain, json, ndjson, pretty"},
	}
}

// ResolveDBPath returns the sqlite DB file path under data_dir.
func ResolveDBPath(v *viper.Viper) string {
	dir := v.GetString("data_dir")
	if dir == "" {
		dir = defaultDataDir()
	}
	// Expand ~ for convenience
	if len(dir) > 0 && dir[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}
	return filepath.Join(dir, "cigmint.db")
}

// ResolveDSN returns db_url when set, otherwise the sqlite file under data_dir.
func ResolveDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString("db_url")); dsn != "" {
		return dsn
	}
	return "sqlite://" + ResolveDBPath(v)
}
