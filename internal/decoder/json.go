package decoder

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// JSONDecoder handles the DICOM JSON model (PS3.18 Annex F), either a single
// dataset object or the one-element array returned by WADO-RS metadata.
type JSONDecoder struct{}

type jsonAttribute struct {
	VR    string            `json:"vr"`
	Value []json.RawMessage `json:"Value,omitempty"`
}

type jsonDataset map[string]jsonAttribute

func (d *JSONDecoder) Decode(r io.Reader, filename string) (*srtree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ReadError{File: filename, Reason: "read failed", Err: err}
	}

	var ds jsonDataset
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []jsonDataset
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, &ReadError{File: filename, Reason: "invalid DICOM JSON", Err: err}
		}
		if len(list) != 1 {
			return nil, &ReadError{File: filename, Reason: "expected exactly one dataset"}
		}
		ds = list[0]
	} else if err := json.Unmarshal(trimmed, &ds); err != nil {
		return nil, &ReadError{File: filename, Reason: "invalid DICOM JSON", Err: err}
	}

	return newDocument(jsonItem(ds), filename)
}

// jsonItem adapts a DICOM JSON dataset to item.
type jsonItem jsonDataset

func (j jsonItem) attr(t tag.Tag) (jsonAttribute, bool) {
	a, ok := j[jsonKey(t)]
	if !ok {
		// Keys are upper-case hex, but be lenient with hand-written files.
		a, ok = j[strings.ToLower(jsonKey(t))]
	}
	return a, ok
}

func (j jsonItem) str(t tag.Tag) (string, bool) {
	a, ok := j.attr(t)
	if !ok {
		return "", false
	}
	if len(a.Value) == 0 {
		return "", true
	}
	parts := make([]string, 0, len(a.Value))
	for _, raw := range a.Value {
		parts = append(parts, jsonString(raw))
	}
	return cleanString(strings.Join(parts, `\`)), true
}

func (j jsonItem) items(t tag.Tag) ([]item, bool) {
	a, ok := j.attr(t)
	if !ok || (a.VR != "" && a.VR != "SQ") {
		return nil, false
	}
	out := make([]item, 0, len(a.Value))
	for _, raw := range a.Value {
		var sub jsonDataset
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		out = append(out, jsonItem(sub))
	}
	return out, true
}

// jsonString renders one value of a DICOM JSON attribute as text. Numbers
// keep their literal form so decimal strings survive untouched.
func jsonString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var pn struct {
		Alphabetic string `json:"Alphabetic"`
	}
	if err := json.Unmarshal(raw, &pn); err == nil && pn.Alphabetic != "" {
		return pn.Alphabetic
	}
	return string(bytes.TrimSpace(raw))
}
