package reach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Identity(t *testing.T) {
	unresolved := NewQuery("call", "/p/a.js")
	assert.False(t, unresolved.Resolved())
	assert.Equal(t, NoSymbol, unresolved.Symbol)

	resolved := unresolved.WithSymbol(3)
	assert.True(t, resolved.Resolved())
	assert.False(t, unresolved.Resolved(), "WithSymbol must not mutate the receiver")

	// Resolved identity ignores the name: an aliased binding is the same
	// query whatever it is called.
	renamed := NewQuery("run", "/p/a.js").WithSymbol(3)
	assert.Equal(t, resolved.key(), renamed.key())

	assert.NotEqual(t, resolved.key(), unresolved.key())
	assert.NotEqual(t, resolved.key(), NewQuery("call", "/p/b.js").WithSymbol(3).key())
	assert.NotEqual(t, unresolved.key(), NewQuery("other", "/p/a.js").key())
}

func TestQuerySet(t *testing.T) {
	s := newQuerySet()
	q := NewQuery("call", "/p/a.js").WithSymbol(0)

	assert.True(t, s.add(q))
	assert.False(t, s.add(q))
	assert.False(t, s.add(NewQuery("alias", "/p/a.js").WithSymbol(0)))
	assert.True(t, s.contains(q))

	assert.True(t, s.add(NewQuery("call", "/p/a.js")))
	assert.True(t, s.add(q.WithSymbol(1)))
	assert.Equal(t, 3, s.len())
	assert.False(t, s.contains(NewQuery("call", "/p/b.js")))
}

func TestSeedAndGranularity(t *testing.T) {
	assert.Equal(t, "call:src/a.js", Seed{Symbol: "call", File: "src/a.js"}.String())

	g, err := ParseGranularity("")
	assert.NoError(t, err)
	assert.Equal(t, GranularityStatement, g)

	g, err = ParseGranularity("top-level")
	assert.NoError(t, err)
	assert.Equal(t, GranularityTopLevel, g)

	_, err = ParseGranularity("expression")
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	u := UnresolvedSeed{Seed: Seed{Symbol: "x", File: "a.js"}, Reason: "file not found"}
	assert.ErrorIs(t, u, ErrUnresolvedSeed)
	assert.Contains(t, u.Error(), "x:a.js")
	assert.Contains(t, u.Error(), "file not found")

	o := &OverflowError{Limit: 10, Processed: 10, Pending: 4}
	assert.ErrorIs(t, o, ErrWorklistOverflow)
	assert.Contains(t, o.Error(), "10")
}
