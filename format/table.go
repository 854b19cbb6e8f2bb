// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/creachadair/numtools/value"
	"gopkg.in/yaml.v3"
)

// An Output names a tabular output encoding.
type Output string

const (
	Plain Output = "plain"
	CSV   Output = "csv"
	JSON  Output = "json"
	YAML  Output = "yaml"
)

// ParseOutput parses the name of an output encoding. The empty string
// denotes Plain.
func ParseOutput(s string) (Output, error) {
	switch o := Output(strings.ToLower(s)); o {
	case "":
		return Plain, nil
	case Plain, CSV, JSON, YAML:
		return o, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// A Table is a sequence of rows with named columns.
type Table struct {
	Columns []string
	Rows    [][]value.Value
}

// Add appends a row to t.
func (t *Table) Add(row []value.Value) { t.Rows = append(t.Rows, row) }

// Options control how a table is written.
type Options struct {
	Delim  string   // column delimiter for Plain and CSV (default ",")
	Header bool     // write a header row (Plain and CSV)
	Align  *Aligner // column alignment for Plain, or nil
}

func (o Options) delim() string {
	if o.Delim == "" {
		return ","
	}
	return o.Delim
}

// Write encodes t to w in the given output format.
func (t *Table) Write(w io.Writer, out Output, opts Options) error {
	switch out {
	case Plain, "":
		return t.writePlain(w, opts)
	case CSV:
		return t.writeCSV(w, opts)
	case JSON:
		return t.writeJSON(w)
	case YAML:
		return t.writeYAML(w)
	}
	return fmt.Errorf("unknown output format %q", out)
}

func (t *Table) writePlain(w io.Writer, opts Options) error {
	al := opts.Align
	if al == nil {
		al = new(Aligner)
	}
	al.Sep = opts.delim()
	if opts.Header {
		al.Add(t.Columns)
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.AsText()
		}
		al.Add(cells)
	}
	return al.Flush(w)
}

func (t *Table) writeCSV(w io.Writer, opts Options) error {
	cw := csv.NewWriter(w)
	if d := []rune(opts.delim()); len(d) == 1 {
		cw.Comma = d[0]
	} else {
		return fmt.Errorf("CSV delimiter must be a single character (got %q)", opts.Delim)
	}
	if opts.Header {
		if err := cw.Write(t.Columns); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = v.AsText()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON writes t as an array of objects, one per row, with keys in column
// order.
func (t *Table) writeJSON(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for r, row := range t.Rows {
		if r > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for i, v := range row {
			if i > 0 {
				buf.WriteString(", ")
			}
			key, _ := json.Marshal(t.column(i))
			val, err := json.Marshal(v)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("}")
	}
	if len(t.Rows) != 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// writeYAML writes t as a sequence of mappings, one per row, with keys in
// column order.
func (t *Table) writeYAML(w io.Writer) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for i, v := range row {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.column(i)},
				yamlNode(v))
		}
		doc.Content = append(doc.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func (t *Table) column(i int) string {
	if i < len(t.Columns) {
		return t.Columns[i]
	}
	return fmt.Sprintf("c%d", i+1)
}

func yamlNode(v value.Value) *yaml.Node {
	switch v.Kind() {
	case value.IntKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.String()}
	case value.FloatKind:
		s := v.String()
		switch s {
		case "NaN":
			s = ".nan"
		case "+Inf":
			s = ".inf"
		case "-Inf":
			s = "-.inf"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}
	case value.BoolKind:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.String()}
	case value.ListKind:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, e := range v.AsList() {
			seq.Content = append(seq.Content, yamlNode(e))
		}
		return seq
	case value.Invalid:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.AsText()}
}
