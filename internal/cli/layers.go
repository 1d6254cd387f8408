package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mithrel/cigmint/internal/layers"
	"github.com/mithrel/cigmint/internal/present"
	"github.com/mithrel/cigmint/internal/present/format"
)

func newLayersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "Inspect layer files",
	}
	cmd.PersistentFlags().String("layers", "", "layer file (YAML or JSON); empty uses the builtin layers")
	cmd.AddCommand(newLayersShowCmd())
	cmd.AddCommand(newLayersValidateCmd())
	cmd.AddCommand(newLayersFindCmd())
	return cmd
}

func newLayersShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved layer set",
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
			switch opts.Mode {
			case present.ModeJSON:
				return format.WriteJSON(cmd.OutOrStdout(), file, opts.JSONIndent)
			case present.ModeNDJSON:
				return format.WriteNDJSON(cmd.OutOrStdout(), file.Layers)
			default:
				b, err := file.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
		},
	}
	addOutputFlags(cmd)
	return cmd
}

func newLayersValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a layer file can be sampled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := layers.Load(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d layers, %d combinations, digest %s\n",
				len(file.Layers), file.Layers.Combinations(), file.Layers.Digest())
			return nil
		},
	}
}

func newLayersFindCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Fuzzy-search trait values as layer/value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			file, err := layers.Resolve(app.Cfg.GetString("layers.file"))
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			matches := layers.Find(file.Layers, query, limit)
			if len(matches) == 0 {
				return fmt.Errorf("no trait matches %q", query)
			}
			return writeMatches(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum matches (0 for all)")
	return cmd
}

func writeMatches(w io.Writer, matches []layers.Match) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = io.WriteString(tw, "layer\tvalue\tweight\n")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.Layer, m.Value, m.Weight)
	}
	return tw.Flush()
}
