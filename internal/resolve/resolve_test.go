package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under root. Keys are slash-separated paths.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func tempRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(Options{})
	require.NoError(t, err)
	return r
}

func TestResolve_Relative(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	writeTree(t, root, map[string]string{
		"factory.js":        "",
		"lib/util.ts":       "",
		"lib/helpers.js":    "",
		"widgets/index.js":  "",
		"app/package.json":  `{"main": "./main.js"}`,
		"app/main.js":       "",
		"data.json":         "{}",
		"nested/deep/x.mjs": "",
	})
	r := newResolver(t)

	tests := []struct {
		name string
		base string
		spec string
		want string
	}{
		{"extension inferred", root, "./factory", "factory.js"},
		{"exact file", root, "./factory.js", "factory.js"},
		{"js aliased to ts", root, "./lib/util.js", "lib/util.ts"},
		{"js alias falls back to js", root, "./lib/helpers.js", "lib/helpers.js"},
		{"directory index", root, "./widgets", "widgets/index.js"},
		{"package main", root, "./app", "app/main.js"},
		{"json", root, "./data", "data.json"},
		{"parent segments", filepath.Join(root, "nested", "deep"), "../../factory", "factory.js"},
		{"mjs", root, "./nested/deep/x", "nested/deep/x.mjs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.base, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	r := newResolver(t)

	_, err := r.Resolve(root, "./missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var re *ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "./missing", re.Specifier)
	assert.Equal(t, root, re.Base)
}

func TestResolve_Builtins(t *testing.T) {
	t.Parallel()
	r := newResolver(t)
	for _, spec := range []string{"fs", "node:fs", "fs/promises", "path"} {
		_, err := r.Resolve(tempRoot(t), spec)
		assert.ErrorIs(t, err, ErrBuiltin, spec)
	}
}

func TestResolve_NodeModules(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	writeTree(t, root, map[string]string{
		"node_modules/plain/index.js":           "",
		"node_modules/plain/lib/extra.js":       "",
		"node_modules/@scope/pkg/package.json":  `{"main": "dist/entry.js"}`,
		"node_modules/@scope/pkg/dist/entry.js": "",
		"src/deep/file.js":                      "",
	})
	r := newResolver(t)
	base := filepath.Join(root, "src", "deep")

	got, err := r.Resolve(base, "plain")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules/plain/index.js"), got)

	got, err = r.Resolve(base, "plain/lib/extra")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules/plain/lib/extra.js"), got)

	got, err = r.Resolve(base, "@scope/pkg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules/@scope/pkg/dist/entry.js"), got)

	_, err = r.Resolve(base, "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_PackageExports(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	writeTree(t, root, map[string]string{
		"node_modules/cond/package.json": `{
			"exports": {
				".": {"browser": "./browser.js", "import": "./esm.mjs", "default": "./cjs.js"},
				"./feature": "./lib/feature.js",
				"./icons/*": "./assets/icons/*.js",
				"./private/*": null
			}
		}`,
		"node_modules/cond/browser.js":           "",
		"node_modules/cond/esm.mjs":              "",
		"node_modules/cond/cjs.js":               "",
		"node_modules/cond/lib/feature.js":       "",
		"node_modules/cond/assets/icons/star.js": "",
		"node_modules/cond/private/secret.js":    "",
		"node_modules/sugar/package.json":        `{"exports": "./only.js"}`,
		"node_modules/sugar/only.js":             "",
		"node_modules/sugar/other.js":            "",
	})
	r := newResolver(t)
	pkg := filepath.Join(root, "node_modules", "cond")

	got, err := r.Resolve(root, "cond")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pkg, "esm.mjs"), got, "first matching condition in key order")

	got, err = r.Resolve(root, "cond/feature")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pkg, "lib", "feature.js"), got)

	got, err = r.Resolve(root, "cond/icons/star")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pkg, "assets", "icons", "star.js"), got)

	_, err = r.Resolve(root, "cond/private/secret")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(root, "cond/lib/feature.js")
	assert.ErrorIs(t, err, ErrNotFound, "unexported subpaths are encapsulated")

	got, err = r.Resolve(root, "sugar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "sugar", "only.js"), got)

	_, err = r.Resolve(root, "sugar/other.js")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_CustomConditions(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	writeTree(t, root, map[string]string{
		"node_modules/cond/package.json": `{"exports": {"browser": "./browser.js", "default": "./cjs.js"}}`,
		"node_modules/cond/browser.js":   "",
		"node_modules/cond/cjs.js":       "",
	})
	r, err := New(Options{Conditions: []string{"browser"}})
	require.NoError(t, err)

	got, err := r.Resolve(root, "cond")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "node_modules", "cond", "browser.js"), got)
}

func TestResolve_Symlinks(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	writeTree(t, root, map[string]string{"real/factory.js": ""})
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "linked")))
	r := newResolver(t)

	got, err := r.Resolve(root, "./linked/factory")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "real", "factory.js"), got)
}

func TestResolve_CachesResults(t *testing.T) {
	t.Parallel()
	root := tempRoot(t)
	writeTree(t, root, map[string]string{"a.js": ""})
	r := newResolver(t)

	first, err := r.Resolve(root, "./a")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "a.js")))

	second, err := r.Resolve(root, "./a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.cache.Len())
}

func TestSplitPackage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spec, name, sub string
	}{
		{"lodash", "lodash", ""},
		{"lodash/fp", "lodash", "/fp"},
		{"@scope/pkg", "@scope/pkg", ""},
		{"@scope/pkg/a/b", "@scope/pkg", "/a/b"},
	}
	for _, tt := range tests {
		name, sub := splitPackage(tt.spec)
		assert.Equal(t, tt.name, name, tt.spec)
		assert.Equal(t, tt.sub, sub, tt.spec)
	}
}
