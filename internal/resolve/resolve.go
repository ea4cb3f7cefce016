// Package resolve maps JavaScript module specifiers to files on disk using
// Node's resolution rules.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrNotFound means no file satisfied the specifier.
	ErrNotFound = errors.New("module not found")
	// ErrBuiltin means the specifier names a Node core module.
	ErrBuiltin = errors.New("builtin module")
)

// ResolutionError describes a specifier that could not be resolved from
// Base.
type ResolutionError struct {
	Base      string
	Specifier string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q from %s: %v", e.Specifier, e.Base, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Options tune resolution.
type Options struct {
	// Extensions are appended, in order, to extensionless paths.
	Extensions []string
	// ExtensionAlias maps a written extension to the extensions tried in
	// its place, e.g. ".js" -> [".ts", ".js"].
	ExtensionAlias map[string][]string
	// Conditions are the package.json "exports" conditions that match.
	Conditions []string
	// CacheSize bounds the number of memoized resolutions.
	CacheSize int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Extensions:     []string{".js", ".mjs", ".cjs", ".ts", ".tsx", ".jsx", ".json"},
		ExtensionAlias: map[string][]string{".js": {".ts", ".js"}},
		Conditions:     []string{"node", "import", "require", "default"},
		CacheSize:      4096,
	}
}

type cacheEntry struct {
	path string
	err  error
}

// Resolver resolves specifiers. It is safe for concurrent use.
type Resolver struct {
	opts       Options
	conditions map[string]bool
	cache      *lru.Cache[string, cacheEntry]
}

// New creates a Resolver. Zero-valued fields of opts take their defaults.
func New(opts Options) (*Resolver, error) {
	def := DefaultOptions()
	if len(opts.Extensions) == 0 {
		opts.Extensions = def.Extensions
	}
	if opts.ExtensionAlias == nil {
		opts.ExtensionAlias = def.ExtensionAlias
	}
	if len(opts.Conditions) == 0 {
		opts.Conditions = def.Conditions
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}
	cache, err := lru.New[string, cacheEntry](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolve: cache: %w", err)
	}
	conds := make(map[string]bool, len(opts.Conditions))
	for _, c := range opts.Conditions {
		conds[c] = true
	}
	return &Resolver{opts: opts, conditions: conds, cache: cache}, nil
}

// Resolve resolves specifier as imported from a file in baseDir and returns
// the canonical absolute path of the target file. Failures are
// *ResolutionError values.
func (r *Resolver) Resolve(baseDir, specifier string) (string, error) {
	key := baseDir + "\x00" + specifier
	if e, ok := r.cache.Get(key); ok {
		return e.path, e.err
	}
	path, err := r.resolve(baseDir, specifier)
	if err != nil {
		err = &ResolutionError{Base: baseDir, Specifier: specifier, Err: err}
	}
	r.cache.Add(key, cacheEntry{path: path, err: err})
	return path, err
}

func (r *Resolver) resolve(baseDir, spec string) (string, error) {
	if spec == "" {
		return "", ErrNotFound
	}
	if strings.HasPrefix(spec, "node:") || builtins[spec] || builtins[strings.SplitN(spec, "/", 2)[0]] {
		return "", ErrBuiltin
	}

	var found string
	var ok bool
	switch {
	case isRelative(spec):
		found, ok = r.loadPath(filepath.Join(baseDir, filepath.FromSlash(spec)), strings.HasSuffix(spec, "/"))
	case filepath.IsAbs(spec):
		found, ok = r.loadPath(filepath.Clean(spec), strings.HasSuffix(spec, "/"))
	default:
		found, ok = r.loadPackage(baseDir, spec)
	}
	if !ok {
		return "", ErrNotFound
	}
	return Canonical(found)
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// loadPath tries path as a file and then as a directory.
func (r *Resolver) loadPath(path string, dirOnly bool) (string, bool) {
	if !dirOnly {
		if f, ok := r.loadFile(path); ok {
			return f, true
		}
	}
	return r.loadDir(path)
}

// loadFile tries extension aliases, the exact path, then appended extensions.
func (r *Resolver) loadFile(path string) (string, bool) {
	ext := filepath.Ext(path)
	if alts, ok := r.opts.ExtensionAlias[ext]; ok {
		stem := strings.TrimSuffix(path, ext)
		for _, alt := range alts {
			if isFile(stem + alt) {
				return stem + alt, true
			}
		}
	}
	if isFile(path) {
		return path, true
	}
	for _, e := range r.opts.Extensions {
		if isFile(path + e) {
			return path + e, true
		}
	}
	return "", false
}

func (r *Resolver) loadDir(dir string) (string, bool) {
	if !isDir(dir) {
		return "", false
	}
	if pkg, err := readPackage(dir); err == nil && pkg.Main != "" {
		main := filepath.Join(dir, filepath.FromSlash(pkg.Main))
		if f, ok := r.loadFile(main); ok {
			return f, true
		}
		if f, ok := r.loadIndex(main); ok {
			return f, true
		}
	}
	return r.loadIndex(dir)
}

func (r *Resolver) loadIndex(dir string) (string, bool) {
	for _, e := range r.opts.Extensions {
		p := filepath.Join(dir, "index"+e)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

// loadPackage walks up node_modules directories from baseDir.
func (r *Resolver) loadPackage(baseDir, spec string) (string, bool) {
	name, sub := splitPackage(spec)
	for dir := baseDir; ; {
		if filepath.Base(dir) != "node_modules" {
			pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
			if isDir(pkgDir) {
				if f, ok := r.loadPackageDir(pkgDir, sub); ok {
					return f, true
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *Resolver) loadPackageDir(pkgDir, sub string) (string, bool) {
	pkg, err := readPackage(pkgDir)
	if err == nil && pkg.Exports != nil {
		target, ok := r.matchExports(pkg.Exports, "."+sub)
		if !ok {
			return "", false
		}
		p := filepath.Join(pkgDir, filepath.FromSlash(target))
		if isFile(p) {
			return p, true
		}
		return "", false
	}
	if sub == "" {
		return r.loadDir(pkgDir)
	}
	return r.loadPath(filepath.Join(pkgDir, filepath.FromSlash(sub)), false)
}

// splitPackage splits "@scope/pkg/sub/path" into ("@scope/pkg", "/sub/path").
func splitPackage(spec string) (string, string) {
	parts := strings.Split(spec, "/")
	n := 1
	if strings.HasPrefix(spec, "@") && len(parts) > 1 {
		n = 2
	}
	name := strings.Join(parts[:n], "/")
	sub := ""
	if len(parts) > n {
		sub = "/" + strings.Join(parts[n:], "/")
	}
	return name, sub
}

// Canonical returns the absolute, symlink-free form of path.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

var builtins = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "cluster": true,
	"crypto": true, "dgram": true, "dns": true, "events": true, "fs": true,
	"http": true, "http2": true, "https": true, "module": true, "net": true,
	"os": true, "path": true, "process": true, "querystring": true,
	"readline": true, "stream": true, "string_decoder": true, "timers": true,
	"tls": true, "tty": true, "url": true, "util": true, "v8": true, "vm": true,
	"worker_threads": true, "zlib": true,
}
