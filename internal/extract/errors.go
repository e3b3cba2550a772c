package extract

import (
	"fmt"
	"strings"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// MalformedNodeError reports a content item missing a field its value type
// requires. A report carrying one is not trusted for QC.
type MalformedNodeError struct {
	Path      []string
	ValueType srtree.ValueType
	Concept   string
	Reason    string
}

func (e *MalformedNodeError) Error() string {
	var sb strings.Builder
	sb.WriteString("malformed")
	if e.ValueType != "" {
		sb.WriteString(" " + string(e.ValueType))
	}
	sb.WriteString(" item")
	if e.Concept != "" {
		sb.WriteString(fmt.Sprintf(" %q", e.Concept))
	}
	if len(e.Path) > 0 {
		sb.WriteString(" at " + strings.Join(e.Path, " > "))
	}
	sb.WriteString(": " + e.Reason)
	return sb.String()
}

// ClassificationError reports a top-level section that cannot be bucketed.
type ClassificationError struct {
	Key    string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %q: %s", e.Key, e.Reason)
}

// MissingObjectError reports a parameter referencing an object that is not
// in the report's object bag.
type MissingObjectError struct {
	Param string
	Ref   string
}

func (e *MissingObjectError) Error() string {
	return fmt.Sprintf("could not find object %q referenced by param %q", e.Ref, e.Param)
}
