package decoder

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// SR content item attributes.
var (
	tagValueType                    = tag.Tag{Group: 0x0040, Element: 0xA040}
	tagConceptNameCodeSequence      = tag.Tag{Group: 0x0040, Element: 0xA043}
	tagCodeMeaning                  = tag.Tag{Group: 0x0008, Element: 0x0104}
	tagTextValue                    = tag.Tag{Group: 0x0040, Element: 0xA160}
	tagMeasuredValueSequence        = tag.Tag{Group: 0x0040, Element: 0xA300}
	tagNumericValue                 = tag.Tag{Group: 0x0040, Element: 0xA30A}
	tagMeasurementUnitsCodeSequence = tag.Tag{Group: 0x0040, Element: 0x08EA}
	tagContentSequence              = tag.Tag{Group: 0x0040, Element: 0xA730}
)

// headerAttrs are the top-level attributes copied to Document.Header.
var headerAttrs = []struct {
	keyword string
	tag     tag.Tag
}{
	{srtree.KeyModality, tag.Tag{Group: 0x0008, Element: 0x0060}},
	{srtree.KeySOPInstanceUID, tag.Tag{Group: 0x0008, Element: 0x0018}},
	{srtree.KeyStudyInstanceUID, tag.Tag{Group: 0x0020, Element: 0x000D}},
	{srtree.KeySeriesInstanceUID, tag.Tag{Group: 0x0020, Element: 0x000E}},
	{srtree.KeyPatientID, tag.Tag{Group: 0x0010, Element: 0x0020}},
	{srtree.KeySeriesDescription, tag.Tag{Group: 0x0008, Element: 0x103E}},
	{srtree.KeyStudyDate, tag.Tag{Group: 0x0008, Element: 0x0020}},
	{srtree.KeySeriesDate, tag.Tag{Group: 0x0008, Element: 0x0021}},
	{srtree.KeyAcquisitionDate, tag.Tag{Group: 0x0008, Element: 0x0022}},
	{srtree.KeyContentDate, tag.Tag{Group: 0x0008, Element: 0x0023}},
	{srtree.KeyAcquisitionDateTime, tag.Tag{Group: 0x0008, Element: 0x002A}},
	{srtree.KeyStudyTime, tag.Tag{Group: 0x0008, Element: 0x0030}},
	{srtree.KeySeriesTime, tag.Tag{Group: 0x0008, Element: 0x0031}},
	{srtree.KeyAcquisitionTime, tag.Tag{Group: 0x0008, Element: 0x0032}},
	{srtree.KeyContentTime, tag.Tag{Group: 0x0008, Element: 0x0033}},
}

// jsonKey formats a tag the way the DICOM JSON model keys attributes.
func jsonKey(t tag.Tag) string {
	return fmt.Sprintf("%04X%04X", t.Group, t.Element)
}

// item is a dataset or sequence item as seen by the tree builder. Both the
// Part 10 and JSON decoders present their data through it.
type item interface {
	// str returns the first value of a string attribute. ok is true whenever
	// the attribute is present, even with no value.
	str(t tag.Tag) (v string, ok bool)
	// items returns the items of a sequence attribute.
	items(t tag.Tag) (seq []item, ok bool)
}

// newDocument builds a Document from a top-level dataset and checks that it
// is a structured report.
func newDocument(ds item, filename string) (*srtree.Document, error) {
	doc := &srtree.Document{Header: make(map[string]string)}
	for _, a := range headerAttrs {
		if v, ok := ds.str(a.tag); ok && v != "" {
			doc.Header[a.keyword] = v
		}
	}
	doc.Modality = doc.Header[srtree.KeyModality]
	if err := checkModality(doc, filename); err != nil {
		return nil, err
	}
	doc.Root = buildNode(ds)
	return doc, nil
}

// buildNode converts an item and everything below it.
func buildNode(it item) *srtree.Node {
	n := &srtree.Node{}
	if vt, ok := it.str(tagValueType); ok {
		n.ValueType = srtree.ValueType(strings.ToUpper(vt))
	}
	n.ConceptName = codeMeaning(it, tagConceptNameCodeSequence)
	if v, ok := it.str(tagTextValue); ok {
		n.Text = &v
	}
	if mv, ok := it.items(tagMeasuredValueSequence); ok && len(mv) > 0 {
		m := &srtree.Measurement{}
		m.NumericValue, _ = mv[0].str(tagNumericValue)
		m.Units = codeMeaning(mv[0], tagMeasurementUnitsCodeSequence)
		n.Measured = m
	}
	if content, ok := it.items(tagContentSequence); ok {
		n.Content = make([]*srtree.Node, 0, len(content))
		for _, c := range content {
			n.Content = append(n.Content, buildNode(c))
		}
	}
	return n
}

// codeMeaning returns CodeMeaning of the first item of a code sequence.
func codeMeaning(it item, seq tag.Tag) string {
	codes, ok := it.items(seq)
	if !ok || len(codes) == 0 {
		return ""
	}
	v, _ := codes[0].str(tagCodeMeaning)
	return v
}

// cleanString strips trailing DICOM value padding. Leading spaces are part
// of the value.
func cleanString(s string) string {
	return strings.TrimRight(s, "\x00 ")
}
