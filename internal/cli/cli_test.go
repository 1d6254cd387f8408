package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/mithrel/cigmint/internal/config"
	"github.com/mithrel/cigmint/internal/db"
	"github.com/mithrel/cigmint/internal/server"
	"github.com/mithrel/cigmint/internal/wire"
	"github.com/mithrel/cigmint/pkg/api"
)

// startReplica serves the NFT and registry canisters on an in-memory store.
func startReplica(t *testing.T) (string, *db.Store) {
	t.Helper()
	store, err := db.Open(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	v := viper.New()
	for _, o := range config.GetConfigOptions() {
		v.SetDefault(o.Key, o.Default)
	}
	ts := httptest.NewServer(server.New(v, store, nil).Router())
	t.Cleanup(ts.Close)
	return ts.URL, store
}

func writeConfigTOML(t *testing.T, dir, remoteURL string) string {
	t.Helper()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	cfg := filepath.Join(dir, "config.toml")
	content := `data_dir = "` + strings.ReplaceAll(dir, "\\", "\\\\") + `"

[log]
level = "error"

[generate]
seed = 7

[remote]
url = "` + remoteURL + `"
`
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfg
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	_, err := execute(root)
	return out.String(), err
}

func mustRun(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	out, err := run(t, cfgPath, args...)
	if err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
}

func TestCLIGenerateAndBrowse(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfigTOML(t, dir, "http://127.0.0.1:1")

	var generated api.Run
	decodeJSON(t, mustRun(t, cfgPath, "generate", "--size", "5", "--output", "json"), &generated)
	if len(generated.Editions) != 5 {
		t.Fatalf("expected 5 editions, got %d", len(generated.Editions))
	}
	seen := map[string]bool{}
	for _, e := range generated.Editions {
		if seen[e.FilteredDNA] {
			t.Fatalf("duplicate edition %q", e.FilteredDNA)
		}
		seen[e.FilteredDNA] = true
		if len(strings.Split(e.DNA, "-")) != 3 {
			t.Fatalf("expected three traits in %q", e.DNA)
		}
	}

	// same seed, same editions
	var again api.Run
	decodeJSON(t, mustRun(t, cfgPath, "generate", "--size", "5", "--output", "json", "--no-save"), &again)
	for i := range again.Editions {
		if again.Editions[i].DNA != generated.Editions[i].DNA {
			t.Fatalf("seeded runs differ at %d: %q vs %q", i, again.Editions[i].DNA, generated.Editions[i].DNA)
		}
	}

	var runs []api.Run
	decodeJSON(t, mustRun(t, cfgPath, "editions", "list", "--output", "json"), &runs)
	if len(runs) != 1 || runs[0].ID != generated.ID {
		t.Fatalf("expected only the saved run, got %+v", runs)
	}

	shown := mustRun(t, cfgPath, "editions", "show", generated.ID)
	if !strings.Contains(shown, generated.Editions[0].DNA) {
		t.Fatalf("show missing first edition: %q", shown)
	}

	out, err := run(t, cfgPath, "generate", "--size", "100")
	if err == nil {
		t.Fatalf("expected exhaustion, got output %q", out)
	}
	if !strings.Contains(err.Error(), "48 combinations") {
		t.Fatalf("expected combinations hint, got %v", err)
	}
}

func TestCLILayers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfigTOML(t, dir, "http://127.0.0.1:1")

	shown := mustRun(t, cfgPath, "layers", "show")
	if !strings.Contains(shown, "name: animal") {
		t.Fatalf("builtin layers missing animal: %q", shown)
	}

	found := mustRun(t, cfgPath, "layers", "find", "wlf")
	if !strings.Contains(found, "wolf") {
		t.Fatalf("expected wolf match: %q", found)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("layers:\n  - name: empty\n    options: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, cfgPath, "layers", "validate", bad); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestCLIMintFlow(t *testing.T) {
	replicaURL, replica := startReplica(t)
	dir := t.TempDir()
	cfgPath := writeConfigTOML(t, dir, replicaURL)

	var generated api.Run
	decodeJSON(t, mustRun(t, cfgPath, "generate", "--size", "4", "--output", "json"), &generated)

	login := mustRun(t, cfgPath, "auth", "login")
	if !strings.Contains(login, "principal: ") {
		t.Fatalf("login output: %q", login)
	}
	principal := strings.TrimSpace(strings.SplitN(strings.SplitN(login, "principal: ", 2)[1], "\n", 2)[0])

	saved := viper.New()
	saved.SetConfigFile(cfgPath)
	if err := saved.ReadInConfig(); err != nil {
		t.Fatalf("read config back: %v", err)
	}
	if saved.GetString("auth.seed") == "" || saved.GetString("remote.url") != replicaURL {
		t.Fatalf("expected seed persisted next to existing settings, got seed=%q url=%q",
			saved.GetString("auth.seed"), saved.GetString("remote.url"))
	}

	whoami := mustRun(t, cfgPath, "auth", "whoami")
	if !strings.Contains(whoami, principal) {
		t.Fatalf("whoami %q does not show %s", whoami, principal)
	}

	mustRun(t, cfgPath, "collection", "create", "turtles", "--symbol", "TRT")

	var minted []api.Token
	decodeJSON(t, mustRun(t, cfgPath, "mint", "--run", generated.ID, "--edition", "2", "--collection", "turtles", "--output", "json"), &minted)
	if len(minted) != 1 || minted[0].Owner != principal || minted[0].DNA != generated.Editions[1].FilteredDNA {
		t.Fatalf("unexpected mint result %+v", minted)
	}

	if _, err := run(t, cfgPath, "bulk-mint", "--run", generated.ID, "--collection", "turtles"); err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected conflict from bulk-mint, got %v", err)
	}
	owned, err := replica.Ledger.ListTokens(context.Background(), principal)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 1 {
		t.Fatalf("bulk-mint was not all-or-nothing: %d tokens", len(owned))
	}

	var bulk []api.Token
	decodeJSON(t, mustRun(t, cfgPath, "bulk-mint", "--run", generated.ID, "--output", "json"), &bulk)
	if len(bulk) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(bulk))
	}

	attrs := mustRun(t, cfgPath, "attributes", "set", "turtles", "shell=green", "eyes=2")
	if attrs != "eyes=2\nshell=green\n" {
		t.Fatalf("attributes output: %q", attrs)
	}

	layerFile := filepath.Join(dir, "layers.yaml")
	layerYAML := "layers:\n  - name: color\n    options:\n      - {value: red, weight: 1}\n      - {value: blue, weight: 3}\n"
	if err := os.WriteFile(layerFile, []byte(layerYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	added := mustRun(t, cfgPath, "layer", "add", "0", "--file", layerFile)
	if !strings.Contains(added, "layer 0: color (2 options)") {
		t.Fatalf("layer add output: %q", added)
	}

	mustRun(t, cfgPath, "auth", "logout")
	if _, err := run(t, cfgPath, "auth", "whoami"); err == nil {
		t.Fatalf("expected whoami to fail after logout")
	}
	relogin := mustRun(t, cfgPath, "auth", "login")
	if !strings.Contains(relogin, principal) {
		t.Fatalf("principal changed across logins: %q", relogin)
	}
}

func TestCLIClosesAppOnFailure(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfigTOML(t, dir, "http://127.0.0.1:1")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "generate", "--size", "100"})
	c, err := execute(root)
	if err == nil {
		t.Fatalf("expected exhaustion")
	}
	app, ok := c.Context().Value(appKey).(*wire.App)
	if !ok {
		t.Fatalf("app not built for %s", c.Name())
	}
	if _, err := app.Store.Runs.ListRuns(context.Background(), 1); err == nil {
		t.Fatalf("store still open after a failed command")
	}
}

func TestCLIDelimiterPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfigTOML(t, dir, "http://127.0.0.1:1")
	layerFile := filepath.Join(dir, "layers.yaml")
	layerYAML := "delimiter: \"_\"\nlayers:\n  - name: a\n    options: [{value: x, weight: 1}]\n  - name: b\n    options: [{value: y, weight: 1}]\n"
	if err := os.WriteFile(layerFile, []byte(layerYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	dnaFor := func(extra ...string) string {
		t.Helper()
		args := append([]string{"generate", "--size", "1", "--no-save", "--output", "json", "--layers", layerFile}, extra...)
		var r api.Run
		decodeJSON(t, mustRun(t, cfgPath, args...), &r)
		return r.Editions[0].DNA
	}

	if got := dnaFor(); got != "x_y" {
		t.Fatalf("layer file delimiter: got %q", got)
	}

	mustRun(t, cfgPath, "config", "set", "generate.delimiter", "+")
	if got := dnaFor(); got != "x+y" {
		t.Fatalf("config delimiter should beat the layer file: got %q", got)
	}
	shown := mustRun(t, cfgPath, "config", "show")
	if !strings.Contains(shown, "generate.delimiter=+\n") {
		t.Fatalf("config show: %q", shown)
	}

	if got := dnaFor("--delimiter", ":"); got != "x:y" {
		t.Fatalf("flag delimiter should win: got %q", got)
	}

	if _, err := run(t, cfgPath, "config", "set", "generate.delimiter", ""); err == nil {
		t.Fatalf("expected empty delimiter to be refused")
	}
	if _, err := run(t, cfgPath, "config", "set", "generate.size", "3"); err == nil {
		t.Fatalf("expected unknown option to be refused")
	}
}

func TestConfigGenerate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cfg", "config.toml")

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "generate", "-o", out})
	if _, err := execute(root); err != nil {
		t.Fatalf("config generate: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[generate]") {
		t.Fatalf("generated config missing [generate]:\n%s", data)
	}

	root = NewRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "generate", "-o", out})
	if _, err := execute(root); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}
