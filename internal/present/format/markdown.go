package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/mithrel/cigmint/pkg/api"
)

// RunMarkdown renders a run and its editions as a markdown document.
func RunMarkdown(r api.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", r.ID)
	fmt.Fprintf(&b, "> **Created:** %s | **Editions:** %d | **Duplicates:** %d/%d\n>\n",
		r.CreatedAt.Local().Format(time.RFC3339), len(r.Editions), r.Duplicates, r.Tolerance)
	fmt.Fprintf(&b, "> **Layers:** `%s`\n\n---\n\n", short(r.LayerDigest))
	b.WriteString("| # | DNA | Filtered | Digest |\n|---|---|---|---|\n")
	for _, e := range r.Editions {
		fmt.Fprintf(&b, "| %d | `%s` | `%s` | `%s` |\n", e.Index, mdCell(e.DNA), mdCell(e.FilteredDNA), short(e.Digest))
	}
	return b.String()
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// WritePrettyRun renders a run with markdown formatting using glamour.
func WritePrettyRun(w io.Writer, r api.Run) error {
	rd, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dracula"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	out, err := rd.Render(RunMarkdown(r))
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	_, err = io.WriteString(w, out)
	return err
}
