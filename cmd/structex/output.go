package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i2y/structex/schema"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// render writes a record in schema field order.
func render(w io.Writer, format string, rs *schema.RecordSchema, rec schema.Record) error {
	switch format {
	case outputText:
		return renderText(w, rs, rec)
	case outputJSON:
		return renderJSON(w, rs, rec)
	case outputYAML:
		return renderYAML(w, rs, rec)
	}
	return fmt.Errorf("unknown output format %q: want text, json or yaml", format)
}

// renderText prints one value per line.
func renderText(w io.Writer, rs *schema.RecordSchema, rec schema.Record) error {
	if rs == personSchema {
		p := personFromRecord(rec)
		_, err := fmt.Fprintf(w, "%s\n%s\n%s\n", p.Name, p.DateOfBirth.Format(time.DateOnly), p.Occupation)
		return err
	}

	plain := rec.Plain(rs)
	for _, f := range rs.Fields() {
		if _, err := fmt.Fprintln(w, plain[f.Name]); err != nil {
			return err
		}
	}
	return nil
}

func renderJSON(w io.Writer, rs *schema.RecordSchema, rec schema.Record) error {
	plain := rec.Plain(rs)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range rs.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(plain[f.Name])
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func renderYAML(w io.Writer, rs *schema.RecordSchema, rec schema.Record) error {
	plain := rec.Plain(rs)

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range rs.Fields() {
		var val yaml.Node
		if err := val.Encode(plain[f.Name]); err != nil {
			return fmt.Errorf("encoding %s: %w", f.Name, err)
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&val,
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
