// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package format_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/creachadair/numtools/expr"
	"github.com/creachadair/numtools/format"
	"github.com/creachadair/numtools/value"
	"github.com/google/go-cmp/cmp"
)

func testEnv() *expr.Env {
	env := expr.NewEnv(nil)
	env.Set("delta", value.Int(50))
	env.Set("neg", value.Int(-3))
	env.Set("x", value.Float(2.5))
	env.Set("whole", value.Float(9))
	env.Set("name", value.Text("cpu"))
	env.Set("vals", value.List([]value.Value{value.Int(1), value.Int(2), value.Int(3)}))
	return env
}

func TestTemplate(t *testing.T) {
	tests := []struct {
		src, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{" (%((delta))+v)", " (+50)"},
		{"%((neg))+v", "-3"},
		{"%((x))+v", "+2.5"},
		{"%((x))v", "2.5"},
		{"%((whole))v", "9.0"},
		{"%((whole))+v", "+9.0"},
		{"%((x))+07v", "+0002.5"},
		{"%((x))-6v|", "2.5   |"},
		{"%((delta))+5v|", "  +50|"},
		{"%((name))+v", "cpu"},
		{"%((x)).3f", "2.500"},
		{"%((x))5.1f|", "  2.5|"},
		{"%((delta))d%%", "50%"},
		{"%((delta))x", "32"},
		{"%((name))s=%((name))q", `cpu="cpu"`},
		{"%((name))-5s|", "cpu  |"},
		{`a\tb\nc\\`, "a\tb\nc\\"},
		{"%((sum(vals)))d", "6"},
		{"%((abs(neg) * (delta + 1)))d", "153"},
		{"%((name + ')'))s", "cpu)"},
		{"%((delta > 10 ? 'big' : 'small'))s", "big"},
		{"%((x))d", "2"},
		{"%((delta))e", "5.000000e+01"},
	}
	env := testEnv()
	for _, test := range tests {
		tmpl, err := format.Parse(test.src)
		if err != nil {
			t.Errorf("Parse %q: unexpected error: %v", test.src, err)
			continue
		}
		got, err := tmpl.Render(env)
		if err != nil {
			t.Errorf("Render %q: unexpected error: %v", test.src, err)
		} else if got != test.want {
			t.Errorf("Render %q: got %q, want %q", test.src, got, test.want)
		}
	}
}

func TestTemplateErrors(t *testing.T) {
	for _, src := range []string{
		"100%",
		"%d",
		"%((delta))",
		"%((delta))z",
		"%((delta)",
		"%((delta +))d",
		"%(('abc))s",
	} {
		if tmpl, err := format.Parse(src); err == nil {
			t.Errorf("Parse %q: got %v, want error", src, tmpl)
		}
	}

	env := testEnv()
	for _, src := range []string{
		"%((name))d",
		"%((missing))v",
	} {
		tmpl, err := format.Parse(src)
		if err != nil {
			t.Errorf("Parse %q: unexpected error: %v", src, err)
			continue
		}
		if got, err := tmpl.Render(env); err == nil {
			t.Errorf("Render %q: got %q, want error", src, got)
		}
	}
}

func TestAligner(t *testing.T) {
	rows := [][]string{
		{"cpu 100", " mem 5", ""},
		{"load 7", " mem 12345", ""},
		{"日本 1", " x 2", "end"},
	}

	t.Run("Auto", func(t *testing.T) {
		a := &format.Aligner{Auto: true, SkipLast: true}
		for _, r := range rows {
			a.Add(r)
		}
		var buf bytes.Buffer
		if err := a.Flush(&buf); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		want := strings.Join([]string{
			"cpu 100 mem 5    ",
			"load 7  mem 12345",
			"日本 1  x 2      end",
		}, "\n") + "\n"
		if diff := cmp.Diff(want, buf.String()); diff != "" {
			t.Errorf("Flush (-want, +got):\n%s", diff)
		}
		if a.Pending() != 0 {
			t.Errorf("Pending after flush: %d", a.Pending())
		}
	})

	t.Run("Fixed", func(t *testing.T) {
		a := &format.Aligner{Width: 8, SkipFirst: true, SkipLast: true}
		got := a.Line([]string{"cpu 100", " mem 5", ""})
		if want := "cpu 100 mem 5  "; got != want {
			t.Errorf("Line: got %q, want %q", got, want)
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		var a *format.Aligner
		if a.Enabled() {
			t.Error("Nil aligner is enabled")
		}
		b := new(format.Aligner)
		if got := b.Line([]string{"a", "bc"}); got != "abc" {
			t.Errorf("Line: got %q, want abc", got)
		}
	})
}

func testTable() *format.Table {
	return &format.Table{
		Columns: []string{"age", "AVG(weight)"},
		Rows: [][]value.Value{
			{value.Int(3), value.Float(4.5)},
			{value.Int(7), value.Float(9)},
		},
	}
}

func TestTableWrite(t *testing.T) {
	tests := []struct {
		out  format.Output
		opts format.Options
		want string
	}{
		{format.Plain, format.Options{Header: true}, "age,AVG(weight)\n3,4.5\n7,9.0\n"},
		{format.Plain, format.Options{Delim: " ", Align: &format.Aligner{Auto: true, SkipLast: true}},
			"3 4.5\n7 9.0\n"},
		{format.CSV, format.Options{Header: true, Delim: ";"}, "age;AVG(weight)\n3;4.5\n7;9.0\n"},
		{format.JSON, format.Options{}, `[
  {"age": 3, "AVG(weight)": 4.5},
  {"age": 7, "AVG(weight)": 9.0}
]
`},
		{format.YAML, format.Options{}, `- age: 3
  AVG(weight): 4.5
- age: 7
  AVG(weight): 9.0
`},
	}
	for _, test := range tests {
		var buf bytes.Buffer
		if err := testTable().Write(&buf, test.out, test.opts); err != nil {
			t.Errorf("Write %v: unexpected error: %v", test.out, err)
			continue
		}
		if diff := cmp.Diff(test.want, buf.String()); diff != "" {
			t.Errorf("Write %v (-want, +got):\n%s", test.out, diff)
		}
	}
}

func TestEmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	tab := &format.Table{Columns: []string{"a"}}
	if err := tab.Write(&buf, format.JSON, format.Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("Write empty: got %q, want %q", got, "[]\n")
	}
}

func TestParseOutput(t *testing.T) {
	for _, s := range []string{"", "plain", "CSV", "json", "yaml"} {
		if _, err := format.ParseOutput(s); err != nil {
			t.Errorf("ParseOutput(%q): %v", s, err)
		}
	}
	if o, err := format.ParseOutput("xml"); err == nil {
		t.Errorf("ParseOutput(xml): got %v, want error", o)
	}
}
