package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mithrel/cigmint/internal/present"
)

func newEditionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editions",
		Short: "Browse saved generation runs",
	}
	cmd.AddCommand(newEditionsListCmd())
	cmd.AddCommand(newEditionsShowCmd())
	return cmd
}

func newEditionsListCmd() *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first, or the editions of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			if runID != "" {
				run, err := app.Store.Runs.GetRun(cmd.Context(), runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
					return present.RenderRun(w, run, opts)
				})
			}
			runs, err := app.Store.Runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
				return present.RenderRuns(w, runs, opts)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "list the editions of this run")
	addOutputFlags(cmd)
	return cmd
}

func newEditionsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run>",
		Short: "Show a run with its editions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			run, err := app.Store.Runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
				return present.RenderRun(w, run, opts)
			})
		},
	}
	addOutputFlags(cmd)
	return cmd
}
