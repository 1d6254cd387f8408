package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/config"
	"github.com/mithrel/cigmint/internal/identity"
	"github.com/mithrel/cigmint/internal/keys"
	"github.com/mithrel/cigmint/internal/present"
	"github.com/mithrel/cigmint/internal/wire"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the signing identity",
	}
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthWhoamiCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session with the configured identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			id, err := authenticate(cmd, app)
			if err != nil {
				return err
			}
			return printSession(cmd, id)
		},
	}
	cmd.Flags().String("provider", "", "identity provider: ii|nfid (default auth.provider)")
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"ii", "nfid"}, cobra.ShellCompDirectiveNoFileComp
	})
	addOutputFlags(cmd)
	return cmd
}

func newAuthWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			id, err := app.Identity.Current(cmd.Context())
			if err != nil {
				if errors.Is(err, identity.ErrNotAuthenticated) || errors.Is(err, identity.ErrSessionExpired) {
					return fmt.Errorf("%w; run `cigmint-cli auth login`", err)
				}
				return err
			}
			return printSession(cmd, id)
		},
	}
	cmd.Flags().String("provider", "", "identity provider: ii|nfid (default auth.provider)")
	addOutputFlags(cmd)
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Drop the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			if err := app.Identity.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
	cmd.Flags().String("provider", "", "identity provider: ii|nfid (default auth.provider)")
	return cmd
}

func printSession(cmd *cobra.Command, id identity.Identity) error {
	opts, err := outputOptions(cmd)
	if err != nil {
		return err
	}
	if opts.Mode == present.ModeJSON || opts.Mode == present.ModeNDJSON {
		return present.RenderValue(cmd.OutOrStdout(), id.Session, opts)
	}
	ses := id.Session
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "principal: %s\n", id.Principal())
	_, _ = fmt.Fprintf(out, "provider: %s\n", ses.Provider)
	_, _ = fmt.Fprintf(out, "issuer: %s\n", ses.Issuer)
	_, _ = fmt.Fprintf(out, "expires: %s\n", ses.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

// authenticate returns a signing identity, opening a session when needed.
// With key_provider = config a freshly created seed is written back to the
// config file so the principal survives restarts.
func authenticate(cmd *cobra.Command, app *wire.App) (identity.Identity, error) {
	id, err := app.Identity.Authenticate(cmd.Context())
	if err != nil {
		return identity.Identity{}, err
	}
	if app.Cfg.GetString("auth.key_provider") != "config" {
		return id, nil
	}
	seed, err := app.Seeds.Get(keys.SeedID(id.Session.Provider))
	if err != nil {
		return identity.Identity{}, err
	}
	enc := base64.StdEncoding.EncodeToString(seed)
	if enc == strings.TrimSpace(app.Cfg.GetString("auth.seed")) {
		return id, nil
	}
	path, err := persistSeed(app, enc)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("persist identity seed: %w", err)
	}
	app.Cfg.Set("auth.seed", enc)
	app.Log.Info("identity seed saved", zap.String("path", path))
	return id, nil
}

func persistSeed(app *wire.App, enc string) (string, error) {
	path := app.Cfg.ConfigFileUsed()
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := config.WriteOption(path, "auth.seed", enc); err != nil {
		return "", fmt.Errorf("%w; or set auth.key_provider = keyring", err)
	}
	return path, nil
}
