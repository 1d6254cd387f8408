package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const tomlHeader = "# cigmint configuration (TOML)"

// sectionDocs heads each [section] in rendered files.
var sectionDocs = map[string]string{
	"log":                "Logging",
	"generate":           "Edition generation",
	"layers":             "Trait layers",
	"auth":               "Signing identity and sessions",
	"identity_providers": "Issuer URL per identity provider",
	"remote":             "Replica client",
	"canisters":          "Canister ids called by mint, collection, attributes and layer",
	"server":             "Local replica started by serve",
	"output":             "Rendering",
}

// splitKey turns "auth.seed" into ("auth", "seed"). Top-level keys have an
// empty section.
func splitKey(key string) (section, name string) {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

// LookupOption returns the declared option for a dotted key.
func LookupOption(key string) (ConfigOption, bool) {
	for _, o := range GetConfigOptions() {
		if o.Key == key {
			return o, true
		}
	}
	return ConfigOption{}, false
}

// ParseValue converts command-line text to the type of the option default.
func (o ConfigOption) ParseValue(raw string) (any, error) {
	switch o.Default.(type) {
	case int:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", o.Key, raw)
		}
		return n, nil
	case bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", o.Key, raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// tomlValue encodes v as the right-hand side of a TOML assignment.
func tomlValue(v any) string {
	b, err := toml.Marshal(map[string]any{"v": v})
	if err != nil {
		return strconv.Quote(fmt.Sprint(v))
	}
	_, val, _ := strings.Cut(strings.TrimSpace(string(b)), "=")
	return strings.TrimSpace(val)
}

func optionLines(name string, value any, comment string) []string {
	return []string{"# " + comment, name + " = " + tomlValue(value)}
}

// RenderDefaultTOML renders every option of GetConfigOptions with its
// comment. Options of one section are declared together, so each section
// header is written once.
func RenderDefaultTOML() string {
	lines := []string{tomlHeader, ""}
	section := ""
	for _, o := range GetConfigOptions() {
		s, name := splitKey(o.Key)
		if s != section {
			section = s
			lines = append(lines, "")
			if doc := sectionDocs[s]; doc != "" {
				lines = append(lines, "# "+doc)
			}
			lines = append(lines, "["+s+"]")
		}
		lines = append(lines, optionLines(name, o.Default, o.Comment)...)
	}
	return strings.Join(append(lines, ""), "\n")
}

// UpdateTOML comments out keys that are no longer options and adds missing
// options to their sections. It reports whether anything changed.
func UpdateTOML(existing string) (string, bool) {
	d := parseDocument(existing)
	opts := GetConfigOptions()
	known := make(map[string]bool, len(opts))
	for _, o := range opts {
		known[o.Key] = true
	}

	present := make(map[string]bool)
	var stale []int
	d.each(func(i int, section, key string) {
		full := key
		if section != "" {
			full = section + "." + key
		}
		present[full] = true
		if !known[full] {
			stale = append(stale, i)
		}
	})

	changed := len(stale) > 0
	for j := len(stale) - 1; j >= 0; j-- {
		i := stale[j]
		indent := indentOf(d.lines[i])
		body := strings.TrimLeft(d.lines[i], " \t")
		d.lines = slices.Replace(d.lines, i, i+1,
			indent+"# OUTDATED: option removed from config schema",
			indent+"# "+body)
	}
	for _, o := range opts {
		if present[o.Key] {
			continue
		}
		section, name := splitKey(o.Key)
		d.insert(section, optionLines(name, o.Default, o.Comment+" (added by config update)"))
		changed = true
	}
	return d.String(), changed
}

// SetOption assigns a dotted key in a TOML document, replacing the current
// assignment or adding one to the section.
func SetOption(existing, key string, value any) string {
	d := parseDocument(existing)
	d.set(key, value)
	return d.String()
}

// CheckTOML validates a TOML document on top of the defaults.
func CheckTOML(text string) error {
	v := viper.New()
	applyDefaults(v)
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return CheckConfigValidity(v)
}

// WriteOption sets key in the TOML file at path. A missing file starts
// from the defaults. The result must still be a valid config.
func WriteOption(path, key string, value any) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".toml" {
		return fmt.Errorf("cannot write %s into %s: only toml configs are editable", key, path)
	}
	text := RenderDefaultTOML()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		text = string(data)
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	updated := SetOption(text, key, value)
	if err := CheckTOML(updated); err != nil {
		return fmt.Errorf("refusing to write %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(updated), 0o600)
}

// document is a line view of a TOML file. Edits keep comments, blank lines
// and unknown content in place.
type document struct {
	lines []string
}

func parseDocument(text string) *document {
	return &document{lines: strings.Split(text, "\n")}
}

func (d *document) String() string { return strings.Join(d.lines, "\n") }

// each calls fn for every "key = value" line with its section.
func (d *document) each(fn func(i int, section, key string)) {
	section := ""
	for i, l := range d.lines {
		trim := strings.TrimSpace(l)
		if name, ok := sectionHeader(trim); ok {
			section = name
			continue
		}
		if key, ok := assignmentKey(trim); ok {
			fn(i, section, key)
		}
	}
}

// bounds returns the body of section as lines [start, end). The top level
// always exists and ends at the first header.
func (d *document) bounds(section string) (start, end int, ok bool) {
	current, found := "", section == ""
	for i, l := range d.lines {
		name, header := sectionHeader(strings.TrimSpace(l))
		if !header {
			continue
		}
		if found && current == section {
			return start, i, true
		}
		current = name
		if !found && name == section {
			found, start = true, i+1
		}
	}
	if !found {
		return 0, 0, false
	}
	return start, len(d.lines), true
}

// insert adds lines after the last entry of section, or appends the
// section when the document has none.
func (d *document) insert(section string, lines []string) {
	start, end, ok := d.bounds(section)
	if !ok {
		for len(d.lines) > 0 && strings.TrimSpace(d.lines[len(d.lines)-1]) == "" {
			d.lines = d.lines[:len(d.lines)-1]
		}
		if len(d.lines) > 0 {
			d.lines = append(d.lines, "")
		}
		if doc := sectionDocs[section]; doc != "" {
			d.lines = append(d.lines, "# "+doc)
		}
		d.lines = append(d.lines, "["+section+"]")
		d.lines = append(d.lines, lines...)
		d.lines = append(d.lines, "")
		return
	}
	at := end
	if end < len(d.lines) {
		// comments right above the next header describe that section
		for at > start && strings.HasPrefix(strings.TrimSpace(d.lines[at-1]), "#") {
			at--
		}
	}
	for at > start && strings.TrimSpace(d.lines[at-1]) == "" {
		at--
	}
	d.lines = slices.Insert(d.lines, at, lines...)
}

func (d *document) set(key string, value any) {
	section, name := splitKey(key)
	line := name + " = " + tomlValue(value)
	replaced := false
	d.each(func(i int, s, k string) {
		if !replaced && s == section && k == name {
			d.lines[i] = indentOf(d.lines[i]) + line
			replaced = true
		}
	})
	if !replaced {
		d.insert(section, []string{line})
	}
}

func sectionHeader(trim string) (string, bool) {
	if !strings.HasPrefix(trim, "[") || strings.HasPrefix(trim, "[[") || !strings.HasSuffix(trim, "]") {
		return "", false
	}
	return strings.TrimSpace(trim[1 : len(trim)-1]), true
}

func assignmentKey(trim string) (string, bool) {
	if trim == "" || strings.HasPrefix(trim, "#") || strings.HasPrefix(trim, "[") {
		return "", false
	}
	key, _, ok := strings.Cut(trim, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" || strings.ContainsAny(key, "\"' \t") {
		return "", false
	}
	return key, true
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
