package srtree

// ValueType is the content item value type, attribute (0040,A040).
type ValueType string

const (
	Container ValueType = "CONTAINER"
	Text      ValueType = "TEXT"
	Num       ValueType = "NUM"
)

// Document is the root of a decoded structured report.
type Document struct {
	Modality string            // (0008,0060)
	Header   map[string]string // Selected header attributes keyed by DICOM keyword
	Root     *Node             // The dataset itself; its Content is the top-level ContentSequence
}

// Node is a single content item in the report tree.
type Node struct {
	ValueType   ValueType
	ConceptName string       // ConceptNameCodeSequence[0].CodeMeaning, empty when absent
	Text        *string      // TextValue, nil when absent
	Measured    *Measurement // MeasuredValueSequence[0], nil when absent
	Content     []*Node      // ContentSequence; nil when the item carries none
}

// Measurement is the first item of a NUM node's MeasuredValueSequence.
type Measurement struct {
	NumericValue string // Raw DS value, empty when absent
	Units        string // MeasurementUnitsCodeSequence[0].CodeMeaning, empty when absent
}

// NewContainer builds a CONTAINER node. A container built with no children
// still carries an (empty) ContentSequence.
func NewContainer(name string, children ...*Node) *Node {
	if children == nil {
		children = []*Node{}
	}
	return &Node{ValueType: Container, ConceptName: name, Content: children}
}

// NewText builds a TEXT node.
func NewText(name, value string) *Node {
	return &Node{ValueType: Text, ConceptName: name, Text: &value}
}

// NewNum builds a NUM node from a raw decimal string and unit meaning.
func NewNum(name, value, units string) *Node {
	return &Node{
		ValueType:   Num,
		ConceptName: name,
		Measured:    &Measurement{NumericValue: value, Units: units},
	}
}

// CountLeaves returns the number of TEXT and NUM items below n.
func CountLeaves(n *Node) int {
	if n == nil {
		return 0
	}
	count := 0
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range cur.Content {
			if c == nil {
				continue
			}
			switch c.ValueType {
			case Text, Num:
				count++
			case Container:
				stack = append(stack, c)
			}
		}
	}
	return count
}
