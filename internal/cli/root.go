package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mithrel/cigmint/internal/config"
	"github.com/mithrel/cigmint/internal/wire"
)

type ctxKey string

const (
	appKey ctxKey = "app"

	// skipAppAnnotation marks commands that run without a wired App.
	skipAppAnnotation = "cigmint/skip-app"
)

// flagKeys maps command flags onto the config keys they override.
var flagKeys = map[string]string{
	"size":      "generate.edition_size",
	"tolerance": "generate.tolerance",
	"seed":      "generate.seed",
	"delimiter": "generate.delimiter",
	"layers":    "layers.file",
	"provider":  "auth.provider",
	"remote":    "remote.url",
	"listen":    "server.addr",
	"output":    "output.format",
}

// Execute builds the root command and runs it.
func Execute() error {
	_, err := execute(NewRootCmd())
	return err
}

// execute runs root and closes the App built for the executed command,
// also when the command failed and cobra skipped its post-run hooks.
func execute(root *cobra.Command) (*cobra.Command, error) {
	c, err := root.ExecuteC()
	if c == nil || c.Context() == nil {
		return c, err
	}
	if app, ok := c.Context().Value(appKey).(*wire.App); ok {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return c, err
}

// NewRootCmd constructs the Cobra root command and wires dependencies.
func NewRootCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:           "cigmint-cli",
		Short:         "cigmint: unique trait DNA generation and minting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipAppAnnotation] == "true" {
				return nil
			}
			v := viper.New()
			if cfgPath != "" {
				v.SetConfigFile(cfgPath)
			}
			if err := config.Load(cmd.Context(), v); err != nil {
				return err
			}
			applyConfigFlagOverrides(cmd, v, flagKeys)
			app, err := wire.BuildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml|toml)")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newLayersCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newMintCmd())
	cmd.AddCommand(newBulkMintCmd())
	cmd.AddCommand(newCollectionCmd())
	cmd.AddCommand(newAttributesCmd())
	cmd.AddCommand(newLayerCmd())
	cmd.AddCommand(newEditionsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newCompletionCmd())

	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Help() }

	return cmd
}

func getApp(cmd *cobra.Command) *wire.App {
	v := cmd.Context().Value(appKey)
	if v == nil {
		fmt.Fprintln(os.Stderr, "internal error: app not initialized")
		os.Exit(1)
	}
	return v.(*wire.App)
}

func skipApp(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[skipAppAnnotation] = "true"
	return cmd
}
