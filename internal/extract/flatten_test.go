package extract

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dgallion1/qcsr/internal/srtree"
)

func TestFlatten_UnwrapsRootTitle(t *testing.T) {
	tree, err := Flatten(bmdReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Patient ID", "Scan Information", "Data Set 1", "Data Set 2", "Data Set 3", "Reference Data"}
	if got := tree.Keys(); !equalStrings(got, want) {
		t.Errorf("expected top-level keys %v, got %v", want, got)
	}
}

func TestFlatten_UnwrapOnlyTheWrapper(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewContainer("BMD Rate of Change Report",
			srtree.NewText("A", "a"),
			srtree.NewContainer("B", srtree.NewText("x", "1")),
		),
	)
	tree, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Keys(); !equalStrings(got, []string{"A", "B"}) {
		t.Errorf("expected keys [A B], got %v", got)
	}
}

func TestFlatten_NoWrapper(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewText("A", "a"),
		srtree.NewContainer("B", srtree.NewText("x", "1")),
	)
	tree, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Keys(); !equalStrings(got, []string{"A", "B"}) {
		t.Errorf("expected keys [A B], got %v", got)
	}
}

func TestFlatten_WrapperWithSiblingsIsKept(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewContainer("BMD Rate of Change Report", srtree.NewText("A", "a")),
		srtree.NewText("Other", "o"),
	)
	tree, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"BMD Rate of Change Report", "Other"}
	if got := tree.Keys(); !equalStrings(got, want) {
		t.Errorf("expected keys %v, got %v", want, got)
	}
}

func TestFlatten_UnknownWrapperIsKept(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewContainer("Some Other Report", srtree.NewText("A", "a")),
	)
	tree, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Keys(); !equalStrings(got, []string{"Some Other Report"}) {
		t.Errorf("expected wrapper to stay, got %v", got)
	}
}

func TestExtractor_CustomRootTitles(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewContainer("Body Composition Report", srtree.NewText("A", "a")),
	)
	tree, err := New("Body Composition Report").Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Keys(); !equalStrings(got, []string{"A"}) {
		t.Errorf("expected custom wrapper to be stripped, got %v", got)
	}
}

func TestFlatten_Idempotent(t *testing.T) {
	root := bmdReport()
	first, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("expected identical trees, got\n%s\n%s", a, b)
	}
}

func TestFlatten_LeafValues(t *testing.T) {
	tree, err := Flatten(bmdReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	si, ok := tree.Get("Scan Information")
	if !ok || si.IsLeaf() {
		t.Fatal("expected Scan Information section")
	}
	length, ok := si.Section.Get("Scan Length")
	if !ok || !length.IsLeaf() {
		t.Fatal("expected Scan Length leaf")
	}
	rec := length.Record
	if rec.Type != KindFloat {
		t.Errorf("expected type %q, got %q", KindFloat, rec.Type)
	}
	if v, ok := rec.Value.(float64); !ok || v != 12.5 {
		t.Errorf("expected value 12.5, got %v", rec.Value)
	}
	if rec.Units != "cm" {
		t.Errorf("expected units %q, got %q", "cm", rec.Units)
	}

	mode, _ := si.Section.Get("Scan Mode")
	if mode.Record.Type != KindString || mode.Record.Value != "Array" {
		t.Errorf("expected string leaf Array, got %+v", mode.Record)
	}
	if mode.Record.Units != "" {
		t.Errorf("expected no units on text leaf, got %q", mode.Record.Units)
	}
}

func TestFlatten_LastWriteWins(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewText("First", "1"),
		srtree.NewText("Dup", "old"),
		srtree.NewText("Last", "2"),
		srtree.NewText("Dup", "new"),
	)
	tree, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", tree.Len())
	}
	dup, _ := tree.Get("Dup")
	if dup.Record.Value != "new" {
		t.Errorf("expected later value to win, got %v", dup.Record.Value)
	}
	if got := tree.Keys(); !equalStrings(got, []string{"First", "Dup", "Last"}) {
		t.Errorf("expected overwritten key to keep its position, got %v", got)
	}
	if tree.Displaced() != 1 {
		t.Errorf("expected 1 displaced leaf, got %d", tree.Displaced())
	}
}

func TestFlatten_SectionReplacesLeaf(t *testing.T) {
	root := srtree.NewContainer("",
		srtree.NewContainer("BMD Rate of Change Report",
			srtree.NewText("Neck", "see below"),
			srtree.NewContainer("Neck", srtree.NewNum("BMD", "0.9", "g/cm2"), srtree.NewNum("Z", "1", "1")),
			srtree.NewNum("Neck", "0.8", "g/cm2"),
		),
	)
	tree, err := Flatten(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	neck, _ := tree.Get("Neck")
	if !neck.IsLeaf() || neck.Record.Value != 0.8 {
		t.Fatalf("expected final NUM leaf, got %+v", neck)
	}
	// the TEXT leaf, then the two leaves of the container
	if tree.Displaced() != 3 {
		t.Errorf("expected 3 displaced leaves after unwrap, got %d", tree.Displaced())
	}

	res, err := Classify(tree)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got, total := res.Len()+res.DroppedLeaves, srtree.CountLeaves(root); got != total {
		t.Errorf("expected %d leaves accounted for, got %d", total, got)
	}
}

func TestWalk_DocumentOrderAndPaths(t *testing.T) {
	leaves, err := Walk(bmdReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 12 {
		t.Fatalf("expected 12 leaves, got %d", len(leaves))
	}

	first := leaves[0]
	if first.Record.Name != "Patient ID" {
		t.Errorf("expected first leaf Patient ID, got %q", first.Record.Name)
	}
	if !equalStrings(first.Path, []string{"BMD Rate of Change Report"}) {
		t.Errorf("unexpected path %v", first.Path)
	}

	bmd := leaves[4]
	if bmd.Record.Name != "BMD" {
		t.Fatalf("expected fifth leaf BMD, got %q", bmd.Record.Name)
	}
	want := []string{"BMD Rate of Change Report", "Data Set 1", "L1-L4"}
	if !equalStrings(bmd.Path, want) {
		t.Errorf("expected path %v, got %v", want, bmd.Path)
	}

	last := leaves[len(leaves)-1]
	if last.Record.Name != "Reference" {
		t.Errorf("expected last leaf Reference, got %q", last.Record.Name)
	}
}

func TestWalk_SkipsUnsupportedValueTypes(t *testing.T) {
	root := srtree.NewContainer("",
		&srtree.Node{ValueType: "CODE", ConceptName: "Finding"},
		&srtree.Node{ValueType: "DATE", ConceptName: "Scan Date"},
		srtree.NewText("Kept", "yes"),
	)
	leaves, err := Walk(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 1 || leaves[0].Record.Name != "Kept" {
		t.Errorf("expected only the TEXT leaf, got %+v", leaves)
	}
}

func TestWalk_DeepNesting(t *testing.T) {
	const depth = 2000
	inner := srtree.NewText("Deep", "bottom")
	node := inner
	for i := 0; i < depth; i++ {
		node = srtree.NewContainer("Level", node)
	}
	leaves, err := Walk(srtree.NewContainer("", node))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 1 {
		t.Fatalf("expected 1 leaf, got %d", len(leaves))
	}
	if len(leaves[0].Path) != depth {
		t.Errorf("expected path depth %d, got %d", depth, len(leaves[0].Path))
	}
}

func TestWalk_EmptyContainer(t *testing.T) {
	leaves, err := Walk(srtree.NewContainer("", srtree.NewContainer("Empty")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 0 {
		t.Errorf("expected no leaves, got %d", len(leaves))
	}
}

func TestWalk_MalformedNodes(t *testing.T) {
	text := "value"
	tests := []struct {
		name string
		item *srtree.Node
	}{
		{"container without content", &srtree.Node{ValueType: srtree.Container, ConceptName: "Section"}},
		{"container without concept", srtree.NewContainer("", srtree.NewText("a", "b"))},
		{"num without measured value", &srtree.Node{ValueType: srtree.Num, ConceptName: "BMD"}},
		{"num without numeric value", srtree.NewNum("BMD", "", "g/cm2")},
		{"num with bad numeric value", srtree.NewNum("BMD", "abc", "g/cm2")},
		{"num without units", srtree.NewNum("BMD", "1.0", "")},
		{"text without concept", &srtree.Node{ValueType: srtree.Text, Text: &text}},
		{"text without value", &srtree.Node{ValueType: srtree.Text, ConceptName: "Comment"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := srtree.NewContainer("", srtree.NewContainer("Outer", tc.item))
			_, err := Walk(root)
			var mErr *MalformedNodeError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MalformedNodeError, got %v", err)
			}
			if !equalStrings(mErr.Path, []string{"Outer"}) {
				t.Errorf("expected path [Outer], got %v", mErr.Path)
			}
		})
	}
}

func TestWalk_RootWithoutContent(t *testing.T) {
	tests := []struct {
		name string
		root *srtree.Node
	}{
		{"nil root", nil},
		{"root without content sequence", &srtree.Node{ValueType: srtree.Container}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Walk(tc.root)
			var mErr *MalformedNodeError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MalformedNodeError, got %v", err)
			}
		})
	}
}

func TestMalformedNodeError_Message(t *testing.T) {
	err := &MalformedNodeError{
		Path:      []string{"Data Set 1", "L1-L4"},
		ValueType: srtree.Num,
		Concept:   "BMD",
		Reason:    "missing MeasuredValueSequence",
	}
	want := `malformed NUM item "BMD" at Data Set 1 > L1-L4: missing MeasuredValueSequence`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
