package extract

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind is the value type tag carried by a Record.
type Kind string

const (
	KindString Kind = "string"
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
)

// Record is a single extracted measurement or text value.
type Record struct {
	Name  string `json:"name"`
	Type  Kind   `json:"type"`
	Value any    `json:"value"`
	Units string `json:"units,omitempty"`
}

// WithName returns a copy of r carrying a different name.
func (r Record) WithName(name string) Record {
	r.Name = name
	return r
}

// Entry is a value in a Tree: exactly one of Record or Section is set.
type Entry struct {
	Record  *Record
	Section *Tree
}

// IsLeaf reports whether the entry holds a record.
func (e *Entry) IsLeaf() bool { return e.Record != nil }

func (e *Entry) MarshalJSON() ([]byte, error) {
	if e.Record != nil {
		return json.Marshal(e.Record)
	}
	return json.Marshal(e.Section)
}

// leafCount returns the number of records held by the entry.
func (e *Entry) leafCount() int {
	if e.Record != nil {
		return 1
	}
	return e.Section.LeafCount()
}

// Tree is an insertion-ordered mapping from section or leaf name to Entry.
// Keys keep the position of their first insertion; re-inserting a name
// replaces the value in place.
type Tree struct {
	entries *orderedmap.OrderedMap[string, *Entry]
	// leaves lost to a later entry of the same name while building
	displaced int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{entries: orderedmap.New[string, *Entry]()}
}

// Len returns the number of entries at this level.
func (t *Tree) Len() int { return t.entries.Len() }

// Get looks up an entry at this level.
func (t *Tree) Get(name string) (*Entry, bool) {
	return t.entries.Get(name)
}

// Keys returns the names at this level in insertion order.
func (t *Tree) Keys() []string {
	keys := make([]string, 0, t.entries.Len())
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each calls fn for every entry at this level in insertion order.
func (t *Tree) Each(fn func(name string, e *Entry)) {
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// LeafCount returns the number of records anywhere below t.
func (t *Tree) LeafCount() int {
	n := 0
	t.Each(func(_ string, e *Entry) { n += e.leafCount() })
	return n
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	return t.entries.MarshalJSON()
}

// Displaced returns how many leaves were overwritten while the tree was
// built. They appear nowhere in the tree.
func (t *Tree) Displaced() int { return t.displaced }

// setRecord stores rec under its name, overwriting whatever was there, and
// returns the number of leaves overwritten.
func (t *Tree) setRecord(rec Record) int {
	n := 0
	if e, ok := t.entries.Get(rec.Name); ok {
		n = e.leafCount()
	}
	t.entries.Set(rec.Name, &Entry{Record: &rec})
	return n
}

// section returns the named child section, creating it when missing. A leaf
// occupying the name is replaced by the new section and counted as
// overwritten.
func (t *Tree) section(name string) (*Tree, int) {
	e, ok := t.entries.Get(name)
	if ok && e.Section != nil {
		return e.Section, 0
	}
	n := 0
	if ok {
		n = e.leafCount()
	}
	s := NewTree()
	t.entries.Set(name, &Entry{Section: s})
	return s, n
}
