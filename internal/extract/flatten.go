package extract

import (
	"slices"
	"strconv"
	"strings"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// DefaultRootTitles are wrapper container names stripped from the top of a
// flattened report.
var DefaultRootTitles = []string{"BMD Rate of Change Report"}

// Leaf is a record together with the container names leading to it.
type Leaf struct {
	Path   []string
	Record Record
}

// Walk visits the content below root depth-first in document order and
// returns every TEXT and NUM item as a Leaf. Other value types are skipped.
func Walk(root *srtree.Node) ([]Leaf, error) {
	if root == nil {
		return nil, &MalformedNodeError{Reason: "document has no root item"}
	}
	if root.Content == nil {
		return nil, &MalformedNodeError{ValueType: srtree.Container, Concept: root.ConceptName, Reason: "missing ContentSequence"}
	}

	type frame struct {
		path  []string
		items []*srtree.Node
		next  int
	}
	stack := []*frame{{items: root.Content}}
	var leaves []Leaf

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		item := top.items[top.next]
		top.next++
		if item == nil {
			continue
		}

		switch item.ValueType {
		case srtree.Container:
			if item.ConceptName == "" {
				return nil, malformed(top.path, item, "missing concept name")
			}
			if item.Content == nil {
				return nil, malformed(top.path, item, "missing ContentSequence")
			}
			path := append(slices.Clone(top.path), item.ConceptName)
			stack = append(stack, &frame{path: path, items: item.Content})

		case srtree.Text:
			rec, err := textRecord(top.path, item)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, Leaf{Path: top.path, Record: rec})

		case srtree.Num:
			rec, err := numRecord(top.path, item)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, Leaf{Path: top.path, Record: rec})
		}
	}
	return leaves, nil
}

func textRecord(path []string, item *srtree.Node) (Record, error) {
	if item.ConceptName == "" {
		return Record{}, malformed(path, item, "missing concept name")
	}
	if item.Text == nil {
		return Record{}, malformed(path, item, "missing TextValue")
	}
	return Record{Name: item.ConceptName, Type: KindString, Value: *item.Text}, nil
}

func numRecord(path []string, item *srtree.Node) (Record, error) {
	if item.ConceptName == "" {
		return Record{}, malformed(path, item, "missing concept name")
	}
	m := item.Measured
	if m == nil {
		return Record{}, malformed(path, item, "missing MeasuredValueSequence")
	}
	raw := strings.TrimSpace(m.NumericValue)
	if raw == "" {
		return Record{}, malformed(path, item, "missing NumericValue")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Record{}, malformed(path, item, "invalid NumericValue "+strconv.Quote(raw))
	}
	if m.Units == "" {
		return Record{}, malformed(path, item, "missing MeasurementUnitsCodeSequence")
	}
	return Record{Name: item.ConceptName, Type: KindFloat, Value: v, Units: m.Units}, nil
}

func malformed(path []string, item *srtree.Node, reason string) *MalformedNodeError {
	return &MalformedNodeError{
		Path:      slices.Clone(path),
		ValueType: item.ValueType,
		Concept:   item.ConceptName,
		Reason:    reason,
	}
}

// Build nests leaves into a Tree by path. An entry landing on an existing
// name overwrites it; the leaves lost that way are counted in Displaced.
func Build(leaves []Leaf) *Tree {
	root := NewTree()
	for _, l := range leaves {
		t := root
		for _, name := range l.Path {
			var n int
			t, n = t.section(name)
			root.displaced += n
		}
		root.displaced += t.setRecord(l.Record)
	}
	return root
}

// unwrap strips a lone wrapper section whose name is one of titles.
func unwrap(t *Tree, titles []string) *Tree {
	if t.Len() != 1 {
		return t
	}
	pair := t.entries.Oldest()
	if pair.Value.Section == nil || !slices.Contains(titles, pair.Key) {
		return t
	}
	inner := pair.Value.Section
	inner.displaced += t.displaced
	return inner
}
