package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, "../output", cfg.Output)
	assert.Equal(t, 100000, cfg.MaxIterations)
	assert.Equal(t, "statement", cfg.Granularity)
	assert.Zero(t, cfg.Timeout)
	assert.Contains(t, cfg.Files.Extensions, ".ts")
	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `
output = "out"
workers = 4
max_iterations = 50
timeout = "2m30s"
granularity = "top-level"

[[seeds]]
symbol = "call"
file = "factory.js"

[[seeds]]
symbol = "token"
file = "auth/session.ts"

[files]
exclude = ["**/*.test.js"]

[resolve]
conditions = ["browser", "import"]
cache_size = 16

[resolve.extension_alias]
".js" = [".ts", ".tsx", ".js"]

[report]
db = ".reach/runs.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Output)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 50, cfg.MaxIterations)
	assert.Equal(t, 150*time.Second, cfg.Timeout)
	assert.Equal(t, "top-level", cfg.Granularity)
	assert.Equal(t, []Seed{{Symbol: "call", File: "factory.js"}, {Symbol: "token", File: "auth/session.ts"}}, cfg.Seeds)
	assert.Equal(t, []string{"**/*.test.js"}, cfg.Files.Exclude)
	assert.NotEmpty(t, cfg.Files.Extensions)
	assert.Equal(t, []string{"browser", "import"}, cfg.Resolve.Conditions)
	assert.Equal(t, 16, cfg.Resolve.CacheSize)
	assert.Equal(t, []string{".ts", ".tsx", ".js"}, cfg.Resolve.ExtensionAlias[".js"])
	assert.Equal(t, ".reach/runs.db", cfg.Report.DB)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "output = "},
		{"unknown key", "outptu = \"x\"\n"},
		{"bad granularity", "granularity = \"file\"\n"},
		{"negative workers", "workers = -1\n"},
		{"seed without file", "[[seeds]]\nsymbol = \"call\"\n"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			writeFile(t, path, tt.content)
			_, err := Load(path)
			assert.Error(t, err, "case %d", i)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadProject(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := LoadProject(dir, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	writeFile(t, filepath.Join(dir, FileName), "workers = 3\n")
	cfg, err = LoadProject(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)

	other := filepath.Join(dir, "other.toml")
	writeFile(t, other, "workers = 5\n")
	cfg, err = LoadProject(dir, other)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workers)
}

func TestApplyEnv_DotenvAndProcess(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	writeFile(t, dotenv, "REACH_OUTPUT=from-dotenv\nREACH_WORKERS=2\nREACH_TIMEOUT=5s\n")

	env := map[string]string{"REACH_WORKERS": "8", "REACH_DB": "runs.db"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, dotenv, lookup))
	assert.Equal(t, "from-dotenv", cfg.Output)
	assert.Equal(t, 8, cfg.Workers, "process environment wins over .env")
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "runs.db", cfg.Report.DB)
}

func TestApplyEnv_MissingDotenv(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, filepath.Join(t.TempDir(), ".env"), noEnv))
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Parallel()
	for key, val := range map[string]string{
		"REACH_WORKERS":        "many",
		"REACH_MAX_ITERATIONS": "-",
		"REACH_TIMEOUT":        "soon",
		"REACH_GRANULARITY":    "file",
	} {
		lookup := func(k string) (string, bool) {
			if k == key {
				return val, true
			}
			return "", false
		}
		assert.Error(t, ApplyEnv(Default(), "", lookup), key)
	}
}
