package scripts_test

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reach"
	"github.com/jward/reach/scripts"
)

func TestFS_ContainsSeedScripts(t *testing.T) {
	names, err := fs.Glob(scripts.FS, "seeds/*.risor")
	require.NoError(t, err)
	assert.Contains(t, names, "seeds/exports.risor")
}

func TestExportsScript(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"lib.js":   "export function call(x) {}\nexport const limit = 3;\nfunction hidden() {}\n",
		"shape.ts": "export class Shape {}\n",
		"main.js":  "import { call, limit } from \"./lib\";\ncall(limit);\n",
	}
	for rel, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
	}

	var logs bytes.Buffer
	e, err := reach.New(root,
		reach.WithOutput(t.TempDir()),
		reach.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		reach.WithScriptsFS(scripts.FS),
		reach.WithSeedScript("seeds/exports.risor"))
	require.NoError(t, err)

	res, err := e.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Unresolved)
	assert.Contains(t, logs.String(), "seeded 3 exports")

	main, ok := res.File("main.js")
	require.True(t, ok)
	require.Len(t, main.Excerpts, 2)
	assert.Equal(t, "call(limit);", main.Excerpts[1].Text)

	_, ok = res.File("shape.ts")
	assert.True(t, ok)
}
