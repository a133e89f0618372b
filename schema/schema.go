// Package schema describes the record shapes a generation service is asked
// to fill in, and turns model output into validated records.
//
// A RecordSchema is a plain description table: an ordered list of fields,
// each with a semantic type and a human-readable description. No Go type
// reflection is involved; callers map the resulting Record into their own
// structs.
//
// Example:
//
//	person := schema.MustNew("Person",
//	    schema.String("name", "The person's full name"),
//	    schema.Date("date_of_birth", "The person's date of birth in ISO 8601 format (YYYY-MM-DD)"),
//	    schema.String("occupation", "The person's current job or profession"),
//	)
package schema

import (
	"errors"
	"fmt"
)

// FieldType is the semantic type of a record field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeDate     FieldType = "date"      // YYYY-MM-DD
	TypeDateTime FieldType = "date-time" // RFC 3339
	TypeInteger  FieldType = "integer"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeEnum     FieldType = "enum"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeDate, TypeDateTime, TypeInteger, TypeNumber, TypeBoolean, TypeEnum:
		return true
	}
	return false
}

// Field is one named, typed, described entry of a RecordSchema.
type Field struct {
	Name        string    `yaml:"name"`
	Type        FieldType `yaml:"type"`
	Description string    `yaml:"description"`
	// Values lists the allowed values of an enum field.
	Values []string `yaml:"values,omitempty"`
}

// String declares a free-text field.
func String(name, description string) Field {
	return Field{Name: name, Type: TypeString, Description: description}
}

// Date declares a calendar date field (YYYY-MM-DD).
func Date(name, description string) Field {
	return Field{Name: name, Type: TypeDate, Description: description}
}

// DateTime declares a timestamp field (RFC 3339).
func DateTime(name, description string) Field {
	return Field{Name: name, Type: TypeDateTime, Description: description}
}

// Integer declares a whole-number field.
func Integer(name, description string) Field {
	return Field{Name: name, Type: TypeInteger, Description: description}
}

// Number declares a floating-point field.
func Number(name, description string) Field {
	return Field{Name: name, Type: TypeNumber, Description: description}
}

// Boolean declares a true/false field.
func Boolean(name, description string) Field {
	return Field{Name: name, Type: TypeBoolean, Description: description}
}

// Enum declares a field restricted to one of values.
func Enum(name, description string, values ...string) Field {
	return Field{Name: name, Type: TypeEnum, Description: description, Values: values}
}

// Errors returned when a schema breaks its invariants.
var (
	ErrNoFields       = errors.New("schema must declare at least one field")
	ErrEmptyFieldName = errors.New("field name must not be empty")
)

// RecordSchema is an ordered set of uniquely named fields.
// Every field is required and must resolve to a non-null value.
type RecordSchema struct {
	name        string
	description string
	fields      []Field
}

// New builds a RecordSchema and checks its invariants.
func New(name string, fields ...Field) (*RecordSchema, error) {
	rs := &RecordSchema{
		name:   name,
		fields: append([]Field(nil), fields...),
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// MustNew is like New but panics on error.
// Useful for package-level schema definitions.
func MustNew(name string, fields ...Field) *RecordSchema {
	rs, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return rs
}

// WithDescription returns a copy of the schema carrying a record-level description.
func (s *RecordSchema) WithDescription(description string) *RecordSchema {
	cp := *s
	cp.fields = append([]Field(nil), s.fields...)
	cp.description = description
	return &cp
}

// Validate checks the schema invariants.
func (s *RecordSchema) Validate() error {
	if s == nil || len(s.fields) == 0 {
		return ErrNoFields
	}
	seen := make(map[string]struct{}, len(s.fields))
	for i, f := range s.fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: %w", i, ErrEmptyFieldName)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.Type.Valid() {
			return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
		if f.Type == TypeEnum && len(f.Values) == 0 {
			return fmt.Errorf("field %q: enum must list at least one value", f.Name)
		}
	}
	return nil
}

// Name returns the schema name, or "response" when unnamed.
func (s *RecordSchema) Name() string {
	if s.name == "" {
		return "response"
	}
	return s.name
}

// Description returns the record-level description.
func (s *RecordSchema) Description() string {
	return s.description
}

// Fields returns a copy of the fields in declaration order.
func (s *RecordSchema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks up a field by name.
func (s *RecordSchema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
