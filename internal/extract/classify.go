package extract

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	datasetPrefix   = "Data Set "
	datasetTitleKey = "Data Set Title"
	scanInfoKey     = "Scan Information"

	summaryMarker = "Summary"
	historyMarker = "History"
)

// Bucket names a Results group.
type Bucket string

const (
	BucketScanInfo Bucket = "scaninfo"
	BucketSummary  Bucket = "summary"
	BucketHistory  Bucket = "history"
	BucketOther    Bucket = "other"
)

// Buckets lists every bucket in output order.
var Buckets = []Bucket{BucketScanInfo, BucketSummary, BucketHistory, BucketOther}

// Results is the categorized output of a report.
type Results struct {
	ScanInfo []Record `json:"scaninfo"`
	Summary  []Record `json:"summary"`
	History  []Record `json:"history"`
	Other    []Record `json:"other"`

	// Dropped lists top-level sections no bucket consumed. DroppedLeaves
	// counts their leaves plus leaves overwritten by a same-name entry.
	Dropped       []string `json:"dropped,omitempty"`
	DroppedLeaves int      `json:"dropped_leaves,omitempty"`
}

func newResults() *Results {
	return &Results{
		ScanInfo: []Record{},
		Summary:  []Record{},
		History:  []Record{},
		Other:    []Record{},
	}
}

// Bucket returns the records of one group.
func (r *Results) Bucket(b Bucket) []Record {
	switch b {
	case BucketScanInfo:
		return r.ScanInfo
	case BucketSummary:
		return r.Summary
	case BucketHistory:
		return r.History
	case BucketOther:
		return r.Other
	}
	return nil
}

// Len returns the number of records across all buckets.
func (r *Results) Len() int {
	return len(r.ScanInfo) + len(r.Summary) + len(r.History) + len(r.Other)
}

// DatasetIndex maps a dataset title to its top-level section key, in
// discovery order.
type DatasetIndex = orderedmap.OrderedMap[string, string]

// Datasets scans the top level of t for "Data Set " sections and indexes
// them by their "Data Set Title" value. A later dataset with the same title
// replaces the earlier one.
func Datasets(t *Tree) (*DatasetIndex, error) {
	index := orderedmap.New[string, string]()
	for _, key := range t.Keys() {
		if !strings.HasPrefix(key, datasetPrefix) {
			continue
		}
		e, _ := t.Get(key)
		title, err := datasetTitle(key, e)
		if err != nil {
			return nil, err
		}
		index.Set(title, key)
	}
	return index, nil
}

func datasetTitle(key string, e *Entry) (string, error) {
	if e.IsLeaf() {
		return "", &ClassificationError{Key: key, Reason: "dataset is a value, not a section"}
	}
	te, ok := e.Section.Get(datasetTitleKey)
	if !ok || !te.IsLeaf() {
		return "", &ClassificationError{Key: key, Reason: fmt.Sprintf("missing %q", datasetTitleKey)}
	}
	title, ok := te.Record.Value.(string)
	if !ok {
		return "", &ClassificationError{Key: key, Reason: fmt.Sprintf("%q is not text", datasetTitleKey)}
	}
	return title, nil
}

// Classify partitions the records of a flattened report into buckets.
// The passes run in a fixed order and each top-level key is consumed at most
// once; t itself is not modified.
func Classify(t *Tree) (*Results, error) {
	index, err := Datasets(t)
	if err != nil {
		return nil, err
	}

	res := newResults()
	consumed := make(map[string]bool, t.Len())

	// Top-level values.
	t.Each(func(key string, e *Entry) {
		if e.IsLeaf() {
			res.Other = append(res.Other, *e.Record)
			consumed[key] = true
		}
	})

	// Scan information, one level deep.
	if e, ok := t.Get(scanInfoKey); ok && !consumed[scanInfoKey] {
		var nestErr error
		e.Section.Each(func(name string, inner *Entry) {
			if nestErr != nil {
				return
			}
			if !inner.IsLeaf() {
				nestErr = &ClassificationError{Key: scanInfoKey, Reason: fmt.Sprintf("nested section %q is not supported", name)}
				return
			}
			res.ScanInfo = append(res.ScanInfo, *inner.Record)
		})
		if nestErr != nil {
			return nil, nestErr
		}
		consumed[scanInfoKey] = true
	}

	// Summary and history datasets. A title naming both feeds both buckets.
	for pair := index.Oldest(); pair != nil; pair = pair.Next() {
		title, key := pair.Key, pair.Value
		toSummary := strings.Contains(title, summaryMarker)
		toHistory := strings.Contains(title, historyMarker)
		if !toSummary && !toHistory {
			continue
		}
		e, _ := t.Get(key)
		recs, err := datasetRecords(key, e.Section)
		if err != nil {
			return nil, err
		}
		if toSummary {
			res.Summary = append(res.Summary, recs...)
		}
		if toHistory {
			res.History = append(res.History, recs...)
		}
		consumed[key] = true
	}

	t.Each(func(key string, e *Entry) {
		if consumed[key] {
			return
		}
		res.Dropped = append(res.Dropped, key)
		res.DroppedLeaves += e.leafCount()
	})
	res.DroppedLeaves += t.Displaced()

	return res, nil
}

// datasetRecords collects a dataset's values. Values inside a subsection are
// renamed "<subsection>_<name>".
func datasetRecords(key string, ds *Tree) ([]Record, error) {
	var recs []Record
	for _, name := range ds.Keys() {
		e, _ := ds.Get(name)
		if e.IsLeaf() {
			recs = append(recs, *e.Record)
			continue
		}
		for _, inner := range e.Section.Keys() {
			ie, _ := e.Section.Get(inner)
			if !ie.IsLeaf() {
				return nil, &ClassificationError{Key: key, Reason: fmt.Sprintf("section %q nests too deep at %q", name, inner)}
			}
			recs = append(recs, ie.Record.WithName(name+"_"+ie.Record.Name))
		}
	}
	return recs, nil
}
