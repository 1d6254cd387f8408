package format

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mithrel/cigmint/pkg/api"
)

// TSV columns per table.
var (
	editionHeader = "index\tdna\tfiltered_dna\tdigest\n"
	runHeader     = "id\tcreated\ttarget\tduplicates\tlayer_digest\n"
	tokenHeader   = "id\towner\tcollection\tdna\n"
)

func esc(field string) string {
	field = strings.ReplaceAll(field, "\t", "\\t")
	field = strings.ReplaceAll(field, "\n", "\\n")
	return field
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func newTable(w io.Writer, headers bool, header string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if headers {
		_, _ = io.WriteString(tw, header)
	}
	return tw
}

func WritePlainEditions(w io.Writer, eds []api.Edition, headers bool) error {
	tw := newTable(w, headers, editionHeader)
	for _, e := range eds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Index, esc(e.DNA), esc(e.FilteredDNA), short(e.Digest))
	}
	return tw.Flush()
}

func WritePlainRuns(w io.Writer, runs []api.Run, headers bool) error {
	tw := newTable(w, headers, runHeader)
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.RFC3339), r.Target, r.Duplicates, short(r.LayerDigest))
	}
	return tw.Flush()
}

func WritePlainTokens(w io.Writer, toks []api.Token, headers bool) error {
	tw := newTable(w, headers, tokenHeader)
	for _, t := range toks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Owner, esc(t.Collection), esc(t.DNA))
	}
	return tw.Flush()
}

// WritePlainMap writes key=value lines sorted by key.
func WritePlainMap(w io.Writer, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", esc(k), esc(m[k])); err != nil {
			return err
		}
	}
	return nil
}
