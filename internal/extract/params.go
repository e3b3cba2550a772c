package extract

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dgallion1/qcsr/internal/srtree"
)

// ObjectRefPrefix marks a parameter value that names an object blob.
const ObjectRefPrefix = "object::"

// ListParams reads the flat parameter layout of a report: top-level TEXT
// items hold JSON-encoded parameter values and a top-level CONTAINER holds
// base64-encoded objects. Parameter strings of the form "object::<key>" are
// replaced by the decoded object bytes.
func ListParams(doc *srtree.Document, log zerolog.Logger) (map[string]any, error) {
	if doc == nil || doc.Root == nil || doc.Root.Content == nil {
		return nil, &MalformedNodeError{ValueType: srtree.Container, Reason: "missing ContentSequence"}
	}

	params := make(map[string]any)
	objects := make(map[string][]byte)

	for _, item := range doc.Root.Content {
		switch item.ValueType {
		case srtree.Text:
			log.Info().Str("concept", item.ConceptName).Msg("text param item")
			if item.ConceptName == "" || item.Text == nil {
				return nil, malformed(nil, item, "missing concept name or TextValue")
			}
			var v any
			if err := json.Unmarshal([]byte(*item.Text), &v); err != nil {
				return nil, malformed(nil, item, "invalid JSON: "+err.Error())
			}
			params[item.ConceptName] = v

		case srtree.Container:
			log.Info().Str("concept", item.ConceptName).Msg("object container item")
			objects = make(map[string][]byte)
			for _, obj := range item.Content {
				if obj.ValueType != srtree.Text {
					log.Info().Str("value_type", string(obj.ValueType)).Str("concept", obj.ConceptName).Msg("skipping nested item")
					continue
				}
				if obj.ConceptName == "" || obj.Text == nil {
					return nil, malformed([]string{item.ConceptName}, obj, "missing concept name or TextValue")
				}
				blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(*obj.Text))
				if err != nil {
					return nil, malformed([]string{item.ConceptName}, obj, "invalid base64: "+err.Error())
				}
				objects[obj.ConceptName] = blob
			}
		}
	}

	log.Info().Int("params", len(params)).Int("objects", len(objects)).Msg("read params")

	for key, val := range params {
		ref, ok := val.(string)
		if !ok || !strings.HasPrefix(ref, ObjectRefPrefix) {
			continue
		}
		blob, ok := lookupObject(objects, ref)
		if !ok {
			log.Error().Str("param", key).Str("ref", ref).Msg("object not found")
			return nil, &MissingObjectError{Param: key, Ref: ref}
		}
		params[key] = blob
	}
	return params, nil
}

// lookupObject resolves a reference by its full "object::<key>" form first,
// then by the bare key.
func lookupObject(objects map[string][]byte, ref string) ([]byte, bool) {
	if blob, ok := objects[ref]; ok {
		return blob, true
	}
	blob, ok := objects[strings.TrimPrefix(ref, ObjectRefPrefix)]
	return blob, ok
}
