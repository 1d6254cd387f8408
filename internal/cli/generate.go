package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/dna"
	"github.com/mithrel/cigmint/internal/layers"
	"github.com/mithrel/cigmint/internal/present"
	"github.com/mithrel/cigmint/pkg/api"
)

func newGenerateCmd() *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a set of unique edition DNA strings",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			file, err := layers.Resolve(app.Cfg.GetString("layers.file"))
			if err != nil {
				return err
			}

			delim := delimiterFor(cmd, app.Cfg, file)
			var rnd dna.RandomSource
			if seed := app.Cfg.GetUint64("generate.seed"); seed != 0 {
				rnd = dna.NewSeededSource(seed)
			} else {
				rnd = dna.NewCryptoSource()
			}

			g := &dna.Generator{
				Target:    app.Cfg.GetInt("generate.edition_size"),
				Tolerance: app.Cfg.GetInt("generate.tolerance"),
				Delimiter: delim,
				Random:    rnd,
				Logger:    app.Log.Named("generate"),
			}
			res, err := g.Run(cmd.Context(), file.Layers)
			if err != nil {
				var ex *dna.ExhaustionError
				if errors.As(err, &ex) {
					return fmt.Errorf("%w (the layers allow %d combinations; add layers or options, or raise --tolerance)",
						err, file.Layers.Combinations())
				}
				return err
			}

			run := api.Run{
				ID:          api.NewRunID(),
				LayerDigest: file.Layers.Digest(),
				Target:      g.Target,
				Tolerance:   g.Tolerance,
				Duplicates:  res.Duplicates,
				Delimiter:   delim,
				CreatedAt:   time.Now().UTC(),
				Editions:    res.Editions,
			}
			if !noSave {
				if err := app.Store.Runs.CreateRun(cmd.Context(), run); err != nil {
					return fmt.Errorf("save run: %w", err)
				}
				app.Log.Info("run saved", zap.String("run", run.ID), zap.Int("editions", len(run.Editions)))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d editions, %d duplicates rejected\n", run.ID, len(run.Editions), run.Duplicates)

			return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
				return present.RenderRun(w, run, opts)
			})
		},
	}
	cmd.Flags().Int("size", 0, "number of editions (default generate.edition_size)")
	cmd.Flags().Int("tolerance", 0, "duplicates tolerated before failing (default generate.tolerance)")
	cmd.Flags().Uint64("seed", 0, "deterministic seed; 0 uses crypto/rand")
	cmd.Flags().String("layers", "", "layer file (YAML or JSON); empty uses the builtin layers")
	cmd.Flags().String("delimiter", "", "DNA delimiter (default: env or config value, else the layer file's, else \"-\")")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the run")
	addOutputFlags(cmd)
	return cmd
}

// delimiterFor resolves the DNA delimiter. A value given explicitly by flag,
// environment or config file wins over the layer file; the layer file wins
// over the built-in default.
func delimiterFor(cmd *cobra.Command, v *viper.Viper, file layers.File) string {
	_, fromEnv := os.LookupEnv("CIGMINT_GENERATE_DELIMITER")
	explicit := cmd.Flags().Changed("delimiter") || fromEnv || v.InConfig("generate.delimiter")
	if file.Delimiter != "" && !explicit {
		return file.Delimiter
	}
	return v.GetString("generate.delimiter")
}
