package results

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/qcsr/internal/extract"
)

// MaxStringLen is the longest string value a sink receives, in characters.
const MaxStringLen = 100

// Sink receives published QC values.
type Sink interface {
	AddFloat(name string, v float64)
	AddString(name string, v string)
	AddDateTime(name string, t time.Time)
}

// UnknownResultTypeError reports a record whose type tag a sink cannot take.
type UnknownResultTypeError struct {
	Name string
	Type extract.Kind
}

func (e *UnknownResultTypeError) Error() string {
	return fmt.Sprintf("result %q has unknown result type %q", e.Name, e.Type)
}

// Sections selects the buckets to publish from a qc_series "section"
// parameter. Scan info and other values are always included; without the
// parameter both summary and history are.
func Sections(params map[string]any) []extract.Bucket {
	buckets := []extract.Bucket{extract.BucketScanInfo, extract.BucketOther}
	section, set := params["section"]
	if !set || section == "Summary" {
		buckets = append(buckets, extract.BucketSummary)
	}
	if !set || section == "History" {
		buckets = append(buckets, extract.BucketHistory)
	}
	return buckets
}

// SectionKey names a bucket selection independently of its order, e.g.
// "history,other,scaninfo". Stored reports carry it so a re-submission with
// a different section is not mistaken for a duplicate.
func SectionKey(buckets []extract.Bucket) string {
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, string(b))
	}
	slices.Sort(names)
	return strings.Join(slices.Compact(names), ",")
}

// Publish sends the records of the selected buckets to sink, in bucket
// order. Every record is checked before the first one is sent, so a bad
// record leaves the sink untouched.
func Publish(res *extract.Results, sink Sink, buckets []extract.Bucket) error {
	var emits []func()
	for _, b := range buckets {
		for _, rec := range res.Bucket(b) {
			emit, err := emitter(rec, sink)
			if err != nil {
				return err
			}
			emits = append(emits, emit)
		}
	}
	for _, emit := range emits {
		emit()
	}
	return nil
}

func emitter(rec extract.Record, sink Sink) (func(), error) {
	switch rec.Type {
	case extract.KindFloat, extract.KindInt:
		v, err := toFloat(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("result %q: %w", rec.Name, err)
		}
		return func() { sink.AddFloat(rec.Name, v) }, nil
	case extract.KindString:
		v := Truncate(fmt.Sprint(rec.Value), MaxStringLen)
		return func() { sink.AddString(rec.Name, v) }, nil
	default:
		return nil, &UnknownResultTypeError{Name: rec.Name, Type: rec.Type}
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
