package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// definition is the YAML form of a RecordSchema.
//
//	name: Person
//	description: A real or fictional person
//	fields:
//	  - name: name
//	    type: string
//	    description: The person's full name
type definition struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`
}

// Parse reads one or more YAML documents, each defining a RecordSchema.
func Parse(data []byte) ([]*RecordSchema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var schemas []*RecordSchema
	for {
		var def definition
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing schema definition: %w", err)
		}
		if def.Name == "" {
			return nil, fmt.Errorf("schema definition %d: name is required", len(schemas)+1)
		}

		rs, err := New(def.Name, def.Fields...)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", def.Name, err)
		}
		rs.description = def.Description
		schemas = append(schemas, rs)
	}

	if len(schemas) == 0 {
		return nil, errors.New("no schema definitions found")
	}
	return schemas, nil
}

// LoadFile reads schema definitions from a YAML file.
func LoadFile(path string) ([]*RecordSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	return Parse(data)
}

// Catalog is a named collection of schemas.
type Catalog struct {
	schemas map[string]*RecordSchema
}

// NewCatalog builds a catalog from schemas. Names must be unique.
func NewCatalog(schemas ...*RecordSchema) (*Catalog, error) {
	c := &Catalog{schemas: make(map[string]*RecordSchema, len(schemas))}
	for _, s := range schemas {
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a schema under its name.
func (c *Catalog) Add(s *RecordSchema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, dup := c.schemas[s.Name()]; dup {
		return fmt.Errorf("schema %q already in catalog", s.Name())
	}
	c.schemas[s.Name()] = s
	return nil
}

// Get looks up a schema by name.
func (c *Catalog) Get(name string) (*RecordSchema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// Names returns the sorted schema names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of schemas.
func (c *Catalog) Len() int {
	return len(c.schemas)
}

// LoadGlob loads every YAML file in fsys matching a doublestar pattern
// (e.g. "schemas/**/*.yaml") into a new catalog.
func LoadGlob(fsys fs.FS, pattern string) (*Catalog, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", pattern, err)
	}
	sort.Strings(matches)

	c, _ := NewCatalog()
	for _, path := range matches {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		schemas, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, s := range schemas {
			if err := c.Add(s); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return c, nil
}
