package decoder

import (
	"bytes"
	"io"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// DICOMDecoder handles DICOM Part 10 files using suyashkumar/dicom.
type DICOMDecoder struct{}

func (d *DICOMDecoder) Decode(r io.Reader, filename string) (*srtree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ReadError{File: filename, Reason: "read failed", Err: err}
	}
	if !isPart10(data) {
		return nil, &ReadError{File: filename, Reason: "missing DICM preamble"}
	}

	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, &ReadError{File: filename, Reason: "parse failed", Err: err}
	}
	return FromDataset(ds, filename)
}

// FromDataset builds a Document from an already parsed dataset.
func FromDataset(ds dicom.Dataset, filename string) (*srtree.Document, error) {
	return newDocument(dicomItem(ds.Elements), filename)
}

// dicomItem adapts a list of parsed elements to item.
type dicomItem []*dicom.Element

func (d dicomItem) find(t tag.Tag) *dicom.Element {
	for _, el := range d {
		if el != nil && el.Tag == t {
			return el
		}
	}
	return nil
}

func (d dicomItem) str(t tag.Tag) (string, bool) {
	el := d.find(t)
	if el == nil || el.Value == nil {
		return "", false
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok {
		return "", false
	}
	// The parser splits every string VR on backslash; text values may
	// legitimately contain one.
	return cleanString(strings.Join(vals, `\`)), true
}

func (d dicomItem) items(t tag.Tag) ([]item, bool) {
	el := d.find(t)
	if el == nil || el.Value == nil {
		return nil, false
	}
	seq, ok := el.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil, false
	}
	out := make([]item, 0, len(seq))
	for _, s := range seq {
		elems, _ := s.GetValue().([]*dicom.Element)
		out = append(out, dicomItem(elems))
	}
	return out, true
}
