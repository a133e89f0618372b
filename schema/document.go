package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Document builds the JSON Schema document for the record.
// Properties keep declaration order; all fields are required and no
// additional properties are allowed, which is what strict structured
// output modes expect.
func (s *RecordSchema) Document() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		props.Set(f.Name, fieldDocument(f))
		required = append(required, f.Name)
	}

	return &jsonschema.Schema{
		Type:                 "object",
		Title:                s.Name(),
		Description:          s.description,
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func fieldDocument(f Field) *jsonschema.Schema {
	doc := &jsonschema.Schema{Description: f.Description}
	switch f.Type {
	case TypeDate, TypeDateTime:
		doc.Type = "string"
		doc.Format = string(f.Type)
	case TypeEnum:
		doc.Type = "string"
		doc.Enum = make([]any, len(f.Values))
		for i, v := range f.Values {
			doc.Enum[i] = v
		}
	default:
		doc.Type = string(f.Type)
	}
	return doc
}

// JSON returns the marshaled schema document.
func (s *RecordSchema) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(s.Document())
	if err != nil {
		return nil, fmt.Errorf("marshaling schema %s: %w", s.Name(), err)
	}
	return b, nil
}

// Instructions renders a human-readable field list, one line per field,
// with each description copied verbatim.
func (s *RecordSchema) Instructions() string {
	var b strings.Builder
	for _, f := range s.fields {
		fmt.Fprintf(&b, "- %s (%s, required)", f.Name, typeHint(f))
		if f.Description != "" {
			b.WriteString(": ")
			b.WriteString(f.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func typeHint(f Field) string {
	switch f.Type {
	case TypeDate:
		return "date, YYYY-MM-DD"
	case TypeDateTime:
		return "date-time, RFC 3339"
	case TypeEnum:
		return "one of: " + strings.Join(f.Values, ", ")
	default:
		return string(f.Type)
	}
}
