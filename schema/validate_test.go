package schema

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Person(t *testing.T) {
	v, err := NewValidator(person)
	require.NoError(t, err)

	rec, err := v.Validate(`{"name": "Harry Potter", "date_of_birth": "1980-07-31", "occupation": "Wizard"}`)
	require.NoError(t, err)

	assert.Equal(t, "Harry Potter", rec.String("name"))
	assert.Equal(t, time.Date(1980, time.July, 31, 0, 0, 0, 0, time.UTC), rec.Time("date_of_birth"))
	assert.Equal(t, "Wizard", rec.String("occupation"))
}

func TestValidator_Rejects(t *testing.T) {
	v, err := NewValidator(person)
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: "  "},
		{name: "prose", content: "Harry Potter is a wizard born in 1980."},
		{name: "truncated JSON", content: `{"name": "Harry Potter", "date_of_birth": "1980-07-31"`},
		{name: "missing field", content: `{"name": "Harry Potter", "date_of_birth": "1980-07-31"}`},
		{name: "null field", content: `{"name": "Harry Potter", "date_of_birth": null, "occupation": "Wizard"}`},
		{name: "wrong type", content: `{"name": 7, "date_of_birth": "1980-07-31", "occupation": "Wizard"}`},
		{name: "bad date", content: `{"name": "Harry Potter", "date_of_birth": "31 July 1980", "occupation": "Wizard"}`},
		{name: "extra field", content: `{"name": "Harry Potter", "date_of_birth": "1980-07-31", "occupation": "Wizard", "house": "Gryffindor"}`},
		{name: "array", content: `[{"name": "Harry Potter"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := v.Validate(tt.content)
			assert.Error(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestValidator_AcceptsFencedOutput(t *testing.T) {
	v, err := NewValidator(person)
	require.NoError(t, err)

	content := "Here is the profile:\n```json\n{\"name\": \"Harry Potter\", \"date_of_birth\": \"1980-07-31\", \"occupation\": \"Wizard\"}\n```\n"
	rec, err := v.Validate(content)
	require.NoError(t, err)
	assert.Equal(t, "Wizard", rec.String("occupation"))
}

func TestValidator_AllTypes(t *testing.T) {
	rs := MustNew("Everything",
		String("s", ""),
		Date("d", ""),
		DateTime("dt", ""),
		Integer("i", ""),
		Number("n", ""),
		Boolean("b", ""),
		Enum("e", "", "red", "green"),
	)
	v, err := NewValidator(rs)
	require.NoError(t, err)

	rec, err := v.Validate(`{"s":"x","d":"2001-02-03","dt":"2001-02-03T04:05:06Z","i":42,"n":1.5,"b":true,"e":"green"}`)
	require.NoError(t, err)

	assert.Equal(t, "x", rec.String("s"))
	assert.Equal(t, 2001, rec.Time("d").Year())
	assert.Equal(t, time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC), rec.Time("dt").UTC())
	assert.Equal(t, int64(42), rec.Int("i"))
	assert.InDelta(t, 1.5, rec.Float("n"), 1e-9)
	assert.True(t, rec.Bool("b"))
	assert.Equal(t, "green", rec.String("e"))
}

func TestValidator_EnumViolation(t *testing.T) {
	rs := MustNew("Color", Enum("e", "", "red", "green"))
	v, err := NewValidator(rs)
	require.NoError(t, err)

	_, err = v.Validate(`{"e":"blue"}`)
	assert.Error(t, err)
}

func TestValidator_Integers(t *testing.T) {
	rs := MustNew("Count", Integer("i", ""))
	v, err := NewValidator(rs)
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		want    int64
		wantErr bool
	}{
		{name: "plain", content: `{"i": 42}`, want: 42},
		{name: "exponent", content: `{"i": 1e3}`, want: 1000},
		{name: "max int64", content: `{"i": 9223372036854775807}`, want: math.MaxInt64},
		{name: "min int64", content: `{"i": -9223372036854775808}`, want: math.MinInt64},
		{name: "fraction", content: `{"i": 2.5}`, wantErr: true},
		{name: "just above max int64", content: `{"i": 9223372036854775808}`, wantErr: true},
		{name: "huge", content: `{"i": 1e30}`, wantErr: true},
		{name: "huge negative", content: `{"i": -1e30}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := v.Validate(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, rec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Int("i"))
		})
	}
}

func TestValidator_DateTime(t *testing.T) {
	rs := MustNew("Event", DateTime("at", ""))
	v, err := NewValidator(rs)
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		want    time.Time
	}{
		{name: "utc", content: `{"at": "2024-03-01T12:30:00Z"}`, want: time.Date(2024, time.March, 1, 12, 30, 0, 0, time.UTC)},
		{name: "leap second", content: `{"at": "2016-12-31T23:59:60Z"}`, want: time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := v.Validate(tt.content)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(rec.Time("at")), "got %s", rec.Time("at"))
		})
	}
}

func TestParseDateTime_Rejects(t *testing.T) {
	for _, s := range []string{"", "2016-12-31", "2016-12-31T23:59:61Z", "2016-12-31 23:59:60Z"} {
		_, err := parseDateTime(s)
		assert.Error(t, err, s)
	}
}

func TestNewValidator_InvalidSchema(t *testing.T) {
	_, err := NewValidator(&RecordSchema{})
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestRecord_Plain(t *testing.T) {
	v, err := NewValidator(person)
	require.NoError(t, err)

	rec, err := v.Validate(`{"name": "Harry Potter", "date_of_birth": "1980-07-31", "occupation": "Wizard"}`)
	require.NoError(t, err)

	plain := rec.Plain(person)
	assert.Equal(t, "1980-07-31", plain["date_of_birth"])
	assert.Equal(t, "Harry Potter", plain["name"])
	// Original record is untouched.
	assert.IsType(t, time.Time{}, rec["date_of_birth"])
}

func TestRecord_ZeroValues(t *testing.T) {
	rec := Record{}
	assert.Empty(t, rec.String("x"))
	assert.True(t, rec.Time("x").IsZero())
	assert.Zero(t, rec.Int("x"))
	assert.Zero(t, rec.Float("x"))
	assert.False(t, rec.Bool("x"))
}
