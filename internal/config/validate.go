package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mithrel/cigmint/internal/identity"
)

var (
	knownProviders    = map[string]bool{"ii": true, "nfid": true}
	knownKeyProviders = map[string]bool{"config": true, "keyring": true}
	knownFormats      = map[string]bool{"plain": true, "json": true, "ndjson": true, "pretty": true}
	knownLevels       = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// CheckConfigValidity reports every problem found in v, joined.
func CheckConfigValidity(v *viper.Viper) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(v.GetString("data_dir")) == "" && strings.TrimSpace(v.GetString("db_url")) == "" {
		add("data_dir is required")
	}
	if lvl := v.GetString("log.level"); lvl != "" && !knownLevels[strings.ToLower(lvl)] {
		add("log.level %q is not one of debug, info, warn, error", lvl)
	}

	if v.GetInt("generate.edition_size") <= 0 {
		add("generate.edition_size must be greater than 0")
	}
	if v.GetInt("generate.tolerance") <= 0 {
		add("generate.tolerance must be greater than 0")
	}
	if v.GetString("generate.delimiter") == "" {
		add("generate.delimiter must not be empty")
	}

	if p := v.GetString("auth.provider"); !knownProviders[p] {
		add("auth.provider %q must be ii or nfid", p)
	} else if strings.TrimSpace(v.GetString("identity_providers."+p)) == "" {
		add("identity_providers.%s is required", p)
	}
	if kp := v.GetString("auth.key_provider"); !knownKeyProviders[kp] {
		add("auth.key_provider %q must be config or keyring", kp)
	}
	checkDuration(v, "auth.max_ttl", add)
	checkDuration(v, "remote.timeout", add)
	checkDuration(v, "remote.ingress_expiry", add)

	if raw := v.GetString("remote.url"); raw == "" {
		add("remote.url is required")
	} else if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
		add("remote.url has invalid url")
	}

	for _, key := range []string{"canisters.nft", "canisters.registry"} {
		id := strings.TrimSpace(v.GetString(key))
		if id == "" {
			add("%s is required", key)
			continue
		}
		if _, err := identity.ParsePrincipal(id); err != nil {
			add("%s is not a valid canister id", key)
		}
	}

	if f := v.GetString("output.format"); f != "" && !knownFormats[f] {
		add("output.format %q is not one of plain, json, ndjson, pretty", f)
	}

	return errors.Join(errs...)
}

func checkDuration(v *viper.Viper, key string, add func(string, ...any)) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		add("%s is required", key)
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		add("%s must be a duration like 30s or 24h", key)
		return
	}
	if d <= 0 {
		add("%s must be greater than 0", key)
	}
}
