package extract

import (
	"github.com/dgallion1/qcsr/internal/srtree"
)

// Extractor flattens and classifies structured reports.
type Extractor struct {
	RootTitles []string // Wrapper container names stripped by Flatten
}

// New returns an Extractor. With no titles it uses DefaultRootTitles.
func New(rootTitles ...string) *Extractor {
	if len(rootTitles) == 0 {
		rootTitles = DefaultRootTitles
	}
	return &Extractor{RootTitles: rootTitles}
}

var std = New()

// Flatten converts the content below root into a nested Tree.
func (x *Extractor) Flatten(root *srtree.Node) (*Tree, error) {
	leaves, err := Walk(root)
	if err != nil {
		return nil, err
	}
	return unwrap(Build(leaves), x.RootTitles), nil
}

// Extract flattens and classifies a whole document.
func (x *Extractor) Extract(doc *srtree.Document) (*Results, error) {
	var root *srtree.Node
	if doc != nil {
		root = doc.Root
	}
	tree, err := x.Flatten(root)
	if err != nil {
		return nil, err
	}
	return Classify(tree)
}

// Flatten uses the default root titles.
func Flatten(root *srtree.Node) (*Tree, error) { return std.Flatten(root) }

// Extract uses the default root titles.
func Extract(doc *srtree.Document) (*Results, error) { return std.Extract(doc) }
