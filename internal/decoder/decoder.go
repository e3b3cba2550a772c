package decoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// Decoder converts raw report bytes into a Document.
type Decoder interface {
	Decode(r io.Reader, filename string) (*srtree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle. Files
// without an extension are treated as DICOM Part 10.
var SupportedExtensions = map[string]bool{
	"":      true,
	".dcm":  true,
	".sr":   true,
	".json": true,
}

// ForFile returns the appropriate decoder for a filename.
func ForFile(filename string) (Decoder, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case "", ".dcm", ".sr":
		return &DICOMDecoder{}, nil
	case ".json":
		return &JSONDecoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Sniff picks a decoder from the leading bytes of data. It returns nil when
// the content looks like neither Part 10 nor DICOM JSON.
func Sniff(data []byte) Decoder {
	if isPart10(data) {
		return &DICOMDecoder{}
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return &JSONDecoder{}
	}
	return nil
}

// isPart10 reports whether data carries the "DICM" magic at offset 128.
func isPart10(data []byte) bool {
	return len(data) >= 132 && string(data[128:132]) == "DICM"
}

// ReadError reports a file that could not be read as a structured report.
type ReadError struct {
	File   string
	Reason string
	Err    error
}

func (e *ReadError) Error() string {
	msg := fmt.Sprintf("cannot read %s: %s", e.File, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadError) Unwrap() error { return e.Err }

// Read opens path and decodes it.
func Read(path string) (*srtree.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{File: path, Reason: "open failed", Err: err}
	}
	return ReadBytes(data, path)
}

// ReadBytes decodes data, choosing a decoder by the filename extension and
// falling back to content sniffing for unknown extensions.
func ReadBytes(data []byte, filename string) (*srtree.Document, error) {
	dec, err := ForFile(filename)
	if err != nil {
		if dec = Sniff(data); dec == nil {
			return nil, &ReadError{File: filename, Reason: "unrecognized format", Err: err}
		}
	}
	return dec.Decode(bytes.NewReader(data), filename)
}

// checkModality rejects anything that is not a structured report.
func checkModality(doc *srtree.Document, filename string) error {
	if doc.Modality != "SR" {
		return &ReadError{File: filename, Reason: fmt.Sprintf("modality %q is not SR", doc.Modality)}
	}
	return nil
}
