package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mithrel/cigmint/internal/present"
)

const defaultPager = "less -FRSX"

// outputOptions resolves --output (already folded into output.format) and
// --noheaders.
func outputOptions(cmd *cobra.Command) (present.Options, error) {
	app := getApp(cmd)
	raw := strings.ToLower(app.Cfg.GetString("output.format"))
	mode, ok := present.ParseMode(raw)
	if !ok {
		return present.Options{}, fmt.Errorf("invalid --output: %s", raw)
	}
	noHeaders, _ := cmd.Flags().GetBool("noheaders")
	return present.Options{
		Mode:       mode,
		JSONIndent: isTerminal(cmd.OutOrStdout()),
		Headers:    !noHeaders,
	}, nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output", "", "output mode: plain|pretty|json|ndjson (default from output.format)")
	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"plain", "pretty", "json", "ndjson"}, cobra.ShellCompDirectiveNoFileComp
	})
	cmd.Flags().Bool("noheaders", false, "hide column headers (plain)")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func withPager(ctx context.Context, out, errOut io.Writer, write func(io.Writer) error) error {
	outFile, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(outFile.Fd())) {
		return write(out)
	}
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = defaultPager
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", pager)
	cmd.Stdout = outFile
	if errFile, ok := errOut.(*os.File); ok {
		cmd.Stderr = errFile
	} else {
		cmd.Stderr = os.Stderr
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return write(out)
	}
	if err := cmd.Start(); err != nil {
		return write(out)
	}
	writeErr := write(stdin)
	_ = stdin.Close()
	waitErr := cmd.Wait()
	if writeErr != nil {
		return writeErr
	}
	return waitErr
}
