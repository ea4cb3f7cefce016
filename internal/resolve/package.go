package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type packageJSON struct {
	Main    string
	Exports *exportsNode
}

// exportsNode is a package.json "exports" value. Object keys keep their
// file order because condition matching is order sensitive.
type exportsNode struct {
	target string
	null   bool
	list   []*exportsNode
	keys   []string
	values []*exportsNode
}

func (n *exportsNode) isObject() bool { return n.keys != nil }

// isSubpathMap reports whether the object's keys are subpaths rather than
// conditions.
func (n *exportsNode) isSubpathMap() bool {
	return n.isObject() && len(n.keys) > 0 && strings.HasPrefix(n.keys[0], ".")
}

func readPackage(dir string) (*packageJSON, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var raw struct {
		Main    string          `json:"main"`
		Exports json.RawMessage `json:"exports"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("package.json in %s: %w", dir, err)
	}
	pkg := &packageJSON{Main: raw.Main}
	if len(raw.Exports) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw.Exports))
		node, err := decodeExports(dec)
		if err != nil {
			return nil, fmt.Errorf("package.json exports in %s: %w", dir, err)
		}
		pkg.Exports = node
	}
	return pkg, nil
}

func decodeExports(dec *json.Decoder) (*exportsNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case nil:
		return &exportsNode{null: true}, nil
	case string:
		return &exportsNode{target: v}, nil
	case json.Delim:
		switch v {
		case '[':
			n := &exportsNode{}
			for dec.More() {
				child, err := decodeExports(dec)
				if err != nil {
					return nil, err
				}
				n.list = append(n.list, child)
			}
			_, err := dec.Token()
			return n, err
		case '{':
			n := &exportsNode{keys: []string{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				child, err := decodeExports(dec)
				if err != nil {
					return nil, err
				}
				n.keys = append(n.keys, key)
				n.values = append(n.values, child)
			}
			_, err := dec.Token()
			return n, err
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// matchExports maps a subpath such as "." or "./feature" through an exports
// value to a package-relative target.
func (r *Resolver) matchExports(root *exportsNode, subpath string) (string, bool) {
	if !root.isSubpathMap() {
		if subpath != "." {
			return "", false
		}
		return r.resolveTarget(root, "")
	}

	for i, key := range root.keys {
		if key == subpath {
			return r.resolveTarget(root.values[i], "")
		}
	}

	// Longest matching "*" pattern wins.
	best, bestStar := -1, ""
	for i, key := range root.keys {
		prefix, suffix, ok := strings.Cut(key, "*")
		if !ok || !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) {
			continue
		}
		if len(subpath) < len(prefix)+len(suffix) {
			continue
		}
		if best < 0 || len(prefix) > len(strings.SplitN(root.keys[best], "*", 2)[0]) {
			best = i
			bestStar = subpath[len(prefix) : len(subpath)-len(suffix)]
		}
	}
	if best < 0 {
		return "", false
	}
	return r.resolveTarget(root.values[best], bestStar)
}

func (r *Resolver) resolveTarget(n *exportsNode, star string) (string, bool) {
	switch {
	case n.null:
		return "", false
	case n.isObject():
		for i, cond := range n.keys {
			if cond != "default" && !r.conditions[cond] {
				continue
			}
			if t, ok := r.resolveTarget(n.values[i], star); ok {
				return t, true
			}
		}
		return "", false
	case n.list != nil:
		for _, alt := range n.list {
			if t, ok := r.resolveTarget(alt, star); ok {
				return t, true
			}
		}
		return "", false
	}
	if !strings.HasPrefix(n.target, "./") {
		return "", false
	}
	return strings.ReplaceAll(n.target, "*", star), true
}
