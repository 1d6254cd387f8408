package present

import (
	"io"

	"github.com/mithrel/cigmint/internal/present/format"
	"github.com/mithrel/cigmint/pkg/api"
)

type Mode int

const (
	ModePlain Mode = iota
	ModePretty
	ModeJSON
	ModeNDJSON
)

type Options struct {
	Mode       Mode
	JSONIndent bool
	Headers    bool
}

// ParseMode parses "plain", "pretty", "json" or "ndjson".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "plain":
		return ModePlain, true
	case "pretty":
		return ModePretty, true
	case "json":
		return ModeJSON, true
	case "ndjson":
		return ModeNDJSON, true
	default:
		return ModePlain, false
	}
}

// RenderRun renders one run with its editions.
func RenderRun(w io.Writer, r api.Run, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSON(w, r, opts.JSONIndent)
	case ModeNDJSON:
		return format.WriteNDJSON(w, r.Editions)
	case ModePretty:
		return format.WritePrettyRun(w, r)
	default:
		return format.WritePlainEditions(w, r.Editions, opts.Headers)
	}
}

// RenderRuns renders run summaries.
func RenderRuns(w io.Writer, runs []api.Run, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSON(w, runs, opts.JSONIndent)
	case ModeNDJSON:
		return format.WriteNDJSON(w, runs)
	default:
		// no markdown view for summaries
		return format.WritePlainRuns(w, runs, opts.Headers)
	}
}

// RenderTokens renders minted tokens.
func RenderTokens(w io.Writer, toks []api.Token, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSON(w, toks, opts.JSONIndent)
	case ModeNDJSON:
		return format.WriteNDJSON(w, toks)
	default:
		return format.WritePlainTokens(w, toks, opts.Headers)
	}
}

// RenderValue renders any reply value; plain and pretty fall back to
// indented JSON.
func RenderValue(w io.Writer, v any, opts Options) error {
	switch opts.Mode {
	case ModeJSON:
		return format.WriteJSON(w, v, opts.JSONIndent)
	case ModeNDJSON:
		return format.WriteJSON(w, v, false)
	default:
		return format.WriteJSON(w, v, true)
	}
}
