package reach

import "github.com/jward/reach/internal/source"

// NoSymbol is the symbol id of a query known only by name.
const NoSymbol source.SymbolID = -1

// Query asks for every use of one binding. Symbol ids are local to the
// origin file's model. Queries are values; resolving one yields a new
// Query.
type Query struct {
	Name   string          `json:"name"`
	Symbol source.SymbolID `json:"symbol"`
	// Origin is the canonical absolute path of the file authoritative for
	// the binding.
	Origin string `json:"origin"`
}

// NewQuery returns an unresolved query for name declared in origin.
func NewQuery(name, origin string) Query {
	return Query{Name: name, Symbol: NoSymbol, Origin: origin}
}

// Resolved reports whether q carries a symbol id.
func (q Query) Resolved() bool {
	return q.Symbol != NoSymbol
}

// WithSymbol returns a copy of q bound to id.
func (q Query) WithSymbol(id source.SymbolID) Query {
	q.Symbol = id
	return q
}

// queryKey is a query's identity: (symbol, origin) once resolved,
// (name, origin) before.
type queryKey struct {
	origin string
	name   string
	symbol source.SymbolID
}

func (q Query) key() queryKey {
	if q.Resolved() {
		return queryKey{origin: q.Origin, symbol: q.Symbol}
	}
	return queryKey{origin: q.Origin, name: q.Name, symbol: NoSymbol}
}

// querySet is the append-only set of query identities seen in a run.
type querySet struct {
	seen map[queryKey]struct{}
}

func newQuerySet() *querySet {
	return &querySet{seen: make(map[queryKey]struct{})}
}

// add inserts q and reports whether it was new.
func (s *querySet) add(q Query) bool {
	k := q.key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	return true
}

func (s *querySet) contains(q Query) bool {
	_, ok := s.seen[q.key()]
	return ok
}

func (s *querySet) len() int { return len(s.seen) }
