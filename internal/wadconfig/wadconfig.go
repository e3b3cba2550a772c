// Package wadconfig loads the module action configuration and runs its
// actions against a structured report.
package wadconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dgallion1/qcsr/internal/extract"
	"github.com/dgallion1/qcsr/internal/results"
	"github.com/dgallion1/qcsr/internal/srtree"
)

// Action names.
const (
	ActionAcqDateTime = "acqdatetime"
	ActionQCSeries    = "qc_series"
)

const schemaURL = "https://qcsr.local/schema/module-config.json"

//go:embed schema.json
var schemaJSON []byte

var schema = mustCompile()

func mustCompile() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("wadconfig: schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		panic(fmt.Sprintf("wadconfig: schema: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// Action is one configured module action.
type Action struct {
	Params  map[string]any `json:"params,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
}

// Config is a module configuration. Actions run in file order.
type Config struct {
	Actions *orderedmap.OrderedMap[string, Action] `json:"actions"`
}

// ValidationError lists the schema violations of a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid module config: " + strings.Join(e.Problems, "; ")
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module config: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the schema and decodes it.
func Parse(data []byte) (*Config, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse module config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		var vErr *jsonschema.ValidationError
		if errors.As(err, &vErr) {
			return nil, &ValidationError{Problems: problems(vErr)}
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode module config: %w", err)
	}
	return cfg, nil
}

// problems flattens the leaves of a validation error tree.
func problems(vErr *jsonschema.ValidationError) []string {
	p := message.NewPrinter(language.English)
	var out []string
	stack := []*jsonschema.ValidationError{vErr}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(e.Causes) == 0 {
			loc := "/" + strings.Join(e.InstanceLocation, "/")
			out = append(out, fmt.Sprintf("%s: %s", loc, e.ErrorKind.LocalizedString(p)))
			continue
		}
		for i := len(e.Causes) - 1; i >= 0; i-- {
			stack = append(stack, e.Causes[i])
		}
	}
	return out
}

// Names returns the configured action names in order.
func (c *Config) Names() []string {
	var names []string
	for pair := c.Actions.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Run applies every action to doc, publishing into sink.
func (c *Config) Run(doc *srtree.Document, x *extract.Extractor, sink results.Sink) error {
	if x == nil {
		x = extract.New()
	}
	for pair := c.Actions.Oldest(); pair != nil; pair = pair.Next() {
		switch pair.Key {
		case ActionAcqDateTime:
			at, err := doc.AcquisitionTime()
			if err != nil {
				return fmt.Errorf("%s: %w", ActionAcqDateTime, err)
			}
			sink.AddDateTime(results.AcquisitionDateTimeName, at)
		case ActionQCSeries:
			res, err := x.Extract(doc)
			if err != nil {
				return fmt.Errorf("%s: %w", ActionQCSeries, err)
			}
			if err := results.Publish(res, sink, results.Sections(pair.Value.Params)); err != nil {
				return fmt.Errorf("%s: %w", ActionQCSeries, err)
			}
		}
	}
	return nil
}
