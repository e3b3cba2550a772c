package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Result categories as written to the results file.
const (
	CategoryFloat    = "float"
	CategoryString   = "string"
	CategoryDateTime = "datetime"
)

// DateTimeLayout formats datetime results.
const DateTimeLayout = "2006-01-02 15:04:05"

// AcquisitionDateTimeName is the result name for a report's acquisition time.
const AcquisitionDateTimeName = "AcquisitionDateTime"

// Result is one published value.
type Result struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Value    any    `json:"val"`
}

// Collector is a Sink that keeps results in publish order.
type Collector struct {
	mu      sync.Mutex
	results []Result
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{results: []Result{}}
}

func (c *Collector) add(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *Collector) AddFloat(name string, v float64) {
	c.add(Result{Category: CategoryFloat, Name: name, Value: v})
}

func (c *Collector) AddString(name string, v string) {
	c.add(Result{Category: CategoryString, Name: name, Value: v})
}

func (c *Collector) AddDateTime(name string, t time.Time) {
	c.add(Result{Category: CategoryDateTime, Name: name, Value: t.Format(DateTimeLayout)})
}

// Results returns a copy of everything collected so far.
func (c *Collector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}

// Len returns the number of collected results.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Write encodes the results as an indented JSON array.
func (c *Collector) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Results())
}

// WriteFile writes the results JSON to path.
func (c *Collector) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if err := c.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write results: %w", err)
	}
	return f.Close()
}
