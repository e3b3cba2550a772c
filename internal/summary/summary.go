// Package summary renders categorized report results as Markdown tables and,
// through goldmark, as an HTML page.
package summary

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/qcsr/internal/extract"
	"github.com/dgallion1/qcsr/internal/srtree"
)

// Field is one line of the report header block.
type Field struct {
	Name  string
	Value string
}

// Report is what gets rendered.
type Report struct {
	Title   string
	Fields  []Field
	Results *extract.Results
}

// FromDocument describes res extracted from doc. Missing header values are
// left out.
func FromDocument(doc *srtree.Document, filename string, res *extract.Results) Report {
	rep := Report{Title: filename, Results: res}
	if doc == nil {
		return rep
	}
	if doc.Root != nil && doc.Root.ConceptName != "" {
		rep.Title = doc.Root.ConceptName
		rep.Fields = append(rep.Fields, Field{"File", filename})
	}
	for _, f := range []struct{ name, key string }{
		{"Patient ID", srtree.KeyPatientID},
		{"Series", srtree.KeySeriesDescription},
		{"SOP Instance UID", srtree.KeySOPInstanceUID},
	} {
		if v := doc.Header[f.key]; v != "" {
			rep.Fields = append(rep.Fields, Field{f.name, v})
		}
	}
	if at, err := doc.AcquisitionTime(); err == nil {
		rep.Fields = append(rep.Fields, Field{"Acquired", at.Format("2006-01-02 15:04:05")})
	}
	return rep
}

var bucketTitles = map[extract.Bucket]string{
	extract.BucketScanInfo: "Scan info",
	extract.BucketSummary:  "Summary",
	extract.BucketHistory:  "History",
	extract.BucketOther:    "Other",
}

// Markdown renders rep with one GFM table per non-empty bucket.
func Markdown(rep Report) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", inline(rep.Title))
	for _, f := range rep.Fields {
		fmt.Fprintf(&b, "- **%s:** %s\n", inline(f.Name), inline(f.Value))
	}
	if len(rep.Fields) > 0 {
		b.WriteByte('\n')
	}
	if rep.Results == nil {
		return b.Bytes()
	}

	for _, bucket := range extract.Buckets {
		recs := rep.Results.Bucket(bucket)
		if len(recs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", bucketTitles[bucket])
		b.WriteString("| Name | Value | Units |\n")
		b.WriteString("| --- | ---: | --- |\n")
		for _, r := range recs {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(r.Name), cell(formatValue(r)), cell(r.Units))
		}
		b.WriteByte('\n')
	}

	if len(rep.Results.Dropped) > 0 {
		fmt.Fprintf(&b, "## Unclassified\n\n%d values in sections no bucket takes:\n\n", rep.Results.DroppedLeaves)
		for _, k := range rep.Results.Dropped {
			fmt.Fprintf(&b, "- %s\n", inline(k))
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders rep as a standalone HTML page.
func HTML(rep Report) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(rep), &body); err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(rep.Title))
	page.WriteString("<style>table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:2px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func formatValue(r extract.Record) string {
	switch v := r.Value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	return strings.ReplaceAll(inline(s), "|", `\|`)
}

var inlineReplacer = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", "#", `\#`,
	"\r\n", " ", "\n", " ", "\r", " ",
)

// inline escapes Markdown syntax so s renders literally.
func inline(s string) string {
	return inlineReplacer.Replace(s)
}
