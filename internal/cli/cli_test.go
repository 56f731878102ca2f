package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/bloomstate/internal/lattice"
	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

const declarations = `
table "link" {
  key   = ["from", "to"]
  value = ["cost"]
}
temp "later" {}
channel "msg" {
  key = ["@addr", "id"]
}
interface "output" "result" {}
lattice "lset" "seen" {}
lattice "lmax" "best" {
  scratch = true
}
`

// run executes the root command with isolated config and data directories.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	return runIn(t, dir, args...)
}

func runIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--config-dir", filepath.Join(dir, "config"),
		"--data-dir", filepath.Join(dir, "data"),
		"--log-level", "error",
	}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bloom v")
	assert.Contains(t, out, modulePath)
}

func TestCheck_Table(t *testing.T) {
	file := writeFile(t, "app.hcl", declarations)
	out, err := run(t, "check", file)
	require.NoError(t, err)

	assert.Contains(t, out, "link")
	assert.Contains(t, out, "[from, to] => [cost]")
	assert.Contains(t, out, "unresolved")
	assert.Contains(t, out, "output")
	assert.Contains(t, out, "4 collections, 2 lattices, 0 advisories")
}

func TestCheck_JSON(t *testing.T) {
	file := writeFile(t, "app.hcl", declarations)
	out, err := run(t, "--json", "check", file)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.Instance)
	assert.Equal(t, []string{file}, report.Files)

	require.Len(t, report.Collections, 4)
	assert.Equal(t, collectionReport{
		Name:        "link",
		Kind:        "table",
		Persistence: types.Durable.String(),
		Schema:      "[from, to] => [cost]",
		Access:      "internal",
	}, report.Collections[0])
	assert.Equal(t, "[addr, id] => [val]", report.Collections[2].Schema)
	assert.Equal(t, "output", report.Collections[3].Access)

	assert.Equal(t, []latticeReport{
		{Name: "seen", Kind: "lset"},
		{Name: "best", Kind: "lmax", Scratch: true},
	}, report.Lattices)
}

func TestCheck_MultipleFilesShareNamespace(t *testing.T) {
	a := writeFile(t, "a.hcl", `table "t" {}`)
	b := writeFile(t, "b.hcl", `scratch "t" {}`)

	_, err := run(t, "check", a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNameConflict)
	assert.Contains(t, err.Error(), "b.hcl")
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"unknown lattice kind", `lattice "lqueue" "q" {}`, types.ErrUnknownLatticeKind},
		{"reserved name", `table "lmax" {}`, types.ErrNameConflict},
		{"channel without address", `channel "c" { key = ["id"] }`, types.ErrMissingAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeFile(t, "bad.hcl", tt.src)
			_, err := run(t, "check", file)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheck_RequiresFile(t *testing.T) {
	_, err := run(t, "check")
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	out, err := run(t, "kinds")
	require.NoError(t, err)
	for _, k := range []string{"lbag", "lbool", "lmax", "lmin", "lset"} {
		assert.Contains(t, out, k)
	}

	out, err = run(t, "--json", "kinds")
	require.NoError(t, err)
	var kinds []kindReport
	require.NoError(t, json.Unmarshal([]byte(out), &kinds))
	require.Len(t, kinds, 5)
	assert.Equal(t, "lbag", kinds[0].Name)
	assert.Equal(t, []string{"size"}, kinds[0].OrdMaps)
	assert.Contains(t, kinds[0].Methods, "merge")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	_, err := runIn(t, dir, "init")
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dir, "data"))
	data, err := os.ReadFile(filepath.Join(dir, "config", "config.yaml"))
	require.NoError(t, err)

	var cfg settings
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, "error", cfg.LogLevel)

	// A second init leaves the existing file alone.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte("log_level: info\n"), 0o644))
	_, err = runIn(t, dir, "init")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "log_level: info\n", string(data))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, settings{LogLevel: defaultLogLevel}, cfg)

	content := "data_dir: /srv/bloom\nlog_level: debug\nstrict_collisions: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	cfg, err = loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, settings{DataDir: "/srv/bloom", LogLevel: "debug", StrictCollisions: true}, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log_level: [\n"), 0o644))
	_, err = loadConfig(dir)
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "chatty", "version")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestCountAdvisories(t *testing.T) {
	reg := prometheus.NewRegistry()
	catalog, err := lattice.NewCatalog(lattice.WithBuiltins(), lattice.WithRegisterer(reg))
	require.NoError(t, err)
	defer catalog.Close()
	assert.Equal(t, 0, countAdvisories(reg))

	keep := func(acc, v any) (any, error) { return v, nil }
	require.NoError(t, catalog.Register(lattice.NewDef("lkeys", keep).Morph("keys")))
	require.NoError(t, catalog.Register(lattice.NewDef("lvals", keep).OrdMap("values")))
	assert.Equal(t, 2, countAdvisories(reg))
}
