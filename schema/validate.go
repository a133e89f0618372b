package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks model output against a compiled RecordSchema and
// coerces it into a Record. A Validator is safe for concurrent use.
type Validator struct {
	schema   *RecordSchema
	compiled *jsonschema.Schema
}

// NewValidator compiles the schema document for local validation.
func NewValidator(s *RecordSchema) (*Validator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.JSON()
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource("record.json", bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", s.Name(), err)
	}
	compiled, err := compiler.Compile("record.json")
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", s.Name(), err)
	}

	return &Validator{schema: s, compiled: compiled}, nil
}

// Schema returns the schema the validator was built from.
func (v *Validator) Schema() *RecordSchema {
	return v.schema
}

// Validate parses raw model output, validates it and coerces every field.
func (v *Validator) Validate(content string) (Record, error) {
	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding output: %w", err)
	}

	if err := v.compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("output does not match schema: %w", err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("output is %T, want a JSON object", doc)
	}
	return v.coerce(obj)
}

func (v *Validator) coerce(obj map[string]any) (Record, error) {
	rec := make(Record, len(v.schema.fields))
	for _, f := range v.schema.fields {
		val, ok := obj[f.Name]
		if !ok || val == nil {
			return nil, fmt.Errorf("field %q: missing value", f.Name)
		}
		coerced, err := coerceField(f, val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		rec[f.Name] = coerced
	}
	return rec, nil
}

func coerceField(f Field, val any) (any, error) {
	switch f.Type {
	case TypeString, TypeEnum:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", val)
		}
		return s, nil
	case TypeDate:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("want date string, got %T", val)
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return nil, fmt.Errorf("want YYYY-MM-DD: %w", err)
		}
		return t, nil
	case TypeDateTime:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("want date-time string, got %T", val)
		}
		t, err := parseDateTime(s)
		if err != nil {
			return nil, fmt.Errorf("want RFC 3339 timestamp: %w", err)
		}
		return t, nil
	case TypeInteger:
		n, ok := val.(json.Number)
		if !ok {
			return nil, fmt.Errorf("want integer, got %T", val)
		}
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		fl, err := n.Float64()
		if err != nil || fl != math.Trunc(fl) {
			return nil, fmt.Errorf("want integer, got %s", n)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
		if fl < math.MinInt64 || fl >= math.MaxInt64 {
			return nil, fmt.Errorf("integer %s out of range", n)
		}
		return int64(fl), nil
	case TypeNumber:
		n, ok := val.(json.Number)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", val)
		}
		fl, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("want number: %w", err)
		}
		return fl, nil
	case TypeBoolean:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("want boolean, got %T", val)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown type %q", f.Type)
}

// parseDateTime parses an RFC 3339 timestamp. A leap second (:60) passes
// the date-time format check but time has no room for it, so it is read as
// the first second of the next minute.
func parseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	if len(s) < 19 || s[17:19] != "60" {
		return time.Time{}, err
	}
	t, lerr := time.Parse(time.RFC3339, s[:17]+"59"+s[19:])
	if lerr != nil {
		return time.Time{}, err
	}
	return t.Add(time.Second), nil
}
