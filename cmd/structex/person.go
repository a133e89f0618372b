package main

import (
	"time"

	"github.com/i2y/structex/schema"
)

// Person is the record the CLI extracts by default.
type Person struct {
	Name        string
	DateOfBirth time.Time
	Occupation  string
}

var personSchema = schema.MustNew("Person",
	schema.String("name", "The person's full name"),
	schema.Date("date_of_birth", "The person's date of birth in ISO 8601 format (YYYY-MM-DD)"),
	schema.String("occupation", "The person's current job or profession"),
).WithDescription("A real or fictional person")

func personFromRecord(rec schema.Record) Person {
	return Person{
		Name:        rec.String("name"),
		DateOfBirth: rec.Time("date_of_birth"),
		Occupation:  rec.String("occupation"),
	}
}
