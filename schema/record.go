package schema

import "time"

// Record is a validated extraction: field name to coerced value.
//
// Value types by field type: string and enum → string, date and date-time →
// time.Time, integer → int64, number → float64, boolean → bool.
type Record map[string]any

// String returns the named string or enum value, or "".
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Time returns the named date or date-time value, or the zero time.
func (r Record) Time(name string) time.Time {
	t, _ := r[name].(time.Time)
	return t
}

// Int returns the named integer value, or 0.
func (r Record) Int(name string) int64 {
	i, _ := r[name].(int64)
	return i
}

// Float returns the named number value, or 0.
func (r Record) Float(name string) float64 {
	f, _ := r[name].(float64)
	return f
}

// Bool returns the named boolean value, or false.
func (r Record) Bool(name string) bool {
	b, _ := r[name].(bool)
	return b
}

// Plain returns a copy suitable for JSON or YAML encoding, with dates
// rendered back into their wire format.
func (r Record) Plain(s *RecordSchema) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, f := range s.fields {
		t, ok := r[f.Name].(time.Time)
		if !ok {
			continue
		}
		switch f.Type {
		case TypeDate:
			out[f.Name] = t.Format(time.DateOnly)
		case TypeDateTime:
			out[f.Name] = t.Format(time.RFC3339)
		}
	}
	return out
}
