package srtree

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header keywords the decoders keep on Document.Header.
const (
	KeyModality            = "Modality"
	KeySOPInstanceUID      = "SOPInstanceUID"
	KeyStudyInstanceUID    = "StudyInstanceUID"
	KeySeriesInstanceUID   = "SeriesInstanceUID"
	KeyPatientID           = "PatientID"
	KeySeriesDescription   = "SeriesDescription"
	KeyAcquisitionDateTime = "AcquisitionDateTime"
	KeyAcquisitionDate     = "AcquisitionDate"
	KeyAcquisitionTime     = "AcquisitionTime"
	KeySeriesDate          = "SeriesDate"
	KeySeriesTime          = "SeriesTime"
	KeyContentDate         = "ContentDate"
	KeyContentTime         = "ContentTime"
	KeyStudyDate           = "StudyDate"
	KeyStudyTime           = "StudyTime"
)

// datePairs lists date/time attribute pairs in order of preference.
var datePairs = [][2]string{
	{KeyAcquisitionDate, KeyAcquisitionTime},
	{KeySeriesDate, KeySeriesTime},
	{KeyContentDate, KeyContentTime},
	{KeyStudyDate, KeyStudyTime},
}

// AcquisitionTime resolves when the report was acquired. AcquisitionDateTime
// wins; otherwise the first date/time pair with a date set is used.
func (d *Document) AcquisitionTime() (time.Time, error) {
	if d == nil || d.Header == nil {
		return time.Time{}, fmt.Errorf("no header attributes")
	}
	if dt := strings.TrimSpace(d.Header[KeyAcquisitionDateTime]); dt != "" {
		return ParseDateTime(dt)
	}
	for _, p := range datePairs {
		date := strings.TrimSpace(d.Header[p[0]])
		if date == "" {
			continue
		}
		return ParseDateTime(date + strings.TrimSpace(d.Header[p[1]]))
	}
	return time.Time{}, fmt.Errorf("no acquisition date in header")
}

// ParseDateTime parses a DICOM DT value (YYYYMMDDHHMMSS.FFFFFF, trailing
// components optional). A UTC offset suffix is ignored.
func ParseDateTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, "+-"); i >= 0 {
		v = v[:i]
	}
	frac := ""
	if i := strings.IndexByte(v, '.'); i >= 0 {
		frac = v[i:]
		v = v[:i]
	}
	layouts := map[int]string{
		4:  "2006",
		6:  "200601",
		8:  "20060102",
		10: "2006010215",
		12: "200601021504",
		14: "20060102150405",
	}
	layout, ok := layouts[len(v)]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid DICOM datetime %q", v)
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DICOM datetime %q: %w", v, err)
	}
	if len(frac) > 1 && len(v) == 14 {
		digits := frac[1:]
		if len(digits) > 9 {
			digits = digits[:9]
		}
		if n, err := strconv.Atoi(digits); err == nil {
			for i := len(digits); i < 9; i++ {
				n *= 10
			}
			t = t.Add(time.Duration(n))
		}
	}
	return t, nil
}
