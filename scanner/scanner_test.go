// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package scanner_test

import (
	"testing"

	"github.com/creachadair/numtools/scanner"
	"github.com/google/go-cmp/cmp"
)

func TestScanner(t *testing.T) {
	tests := []struct {
		input string
		want  []scanner.Token
	}{
		// Empty inputs
		{"", nil},
		{"  ", nil},
		{"\n\n  \n", nil},
		{"\t  \r\n \t  \r\n", nil},

		// Strings
		{`"" "a b c" 'a\nb\tc'`, []scanner.Token{scanner.String, scanner.String, scanner.String}},
		{`"\"\\\/\b\f\n\r\t"`, []scanner.Token{scanner.String}},
		{`"\u0000Ǽꪜ"`, []scanner.Token{scanner.String}},

		// Numbers
		{`0 1 5139 23`, []scanner.Token{
			scanner.Integer, scanner.Integer, scanner.Integer, scanner.Integer,
		}},
		{`1.5 .25 1e3 2.5E-2`, []scanner.Token{
			scanner.Float, scanner.Float, scanner.Float, scanner.Float,
		}},

		// Names and operators
		{`avg(weight) >= 2`, []scanner.Token{
			scanner.Name, scanner.Punct, scanner.Name, scanner.Punct, scanner.Punct, scanner.Integer,
		}},
		{"`weight (kg)`*$x", []scanner.Token{scanner.Name, scanner.Punct, scanner.Name}},
		{`a.b//2**3`, []scanner.Token{
			scanner.Name, scanner.Punct, scanner.Integer, scanner.Punct, scanner.Integer,
		}},
	}

	for _, test := range tests {
		var got []scanner.Token
		s := scanner.NewString(test.input)
		for s.Next() {
			got = append(got, s.Token())
		}
		if s.Err() != nil {
			t.Errorf("Next failed: %v", s.Err())
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("Input: %#q\nTokens: (-want, +got)\n%s", test.input, diff)
		}
	}
}

func TestScannerText(t *testing.T) {
	tests := []struct {
		input      string
		tok        scanner.Token
		text, want string
	}{
		{`"a\tb c\n"`, scanner.String, `"a\tb c\n"`, "a\tb c\n"},
		{`'it\'s'`, scanner.String, `'it\'s'`, "it's"},
		{"`cpu usage`", scanner.Name, "`cpu usage`", "cpu usage"},
		{`cpu.user`, scanner.Name, "cpu.user", "cpu.user"},
		{`>=`, scanner.Punct, ">=", ">="},
		{`-15`, scanner.Punct, "-", "-"},
	}
	for _, tc := range tests {
		s := scanner.NewString(tc.input)
		if !s.Next() {
			t.Fatalf("Next %#q failed: %v", tc.input, s.Err())
		}
		if s.Token() != tc.tok {
			t.Errorf("Token %#q: got %v, want %v", tc.input, s.Token(), tc.tok)
		}
		if got := s.Text(); got != tc.text {
			t.Errorf("Text %#q: got %#q, want %#q", tc.input, got, tc.text)
		}
		if got := s.Value(); got != tc.want {
			t.Errorf("Value %#q: got %#q, want %#q", tc.input, got, tc.want)
		}
	}
}

func TestScannerErrors(t *testing.T) {
	for _, input := range []string{
		`"unterminated`,
		`12ms`,
		`1.2.3`,
		`"\q"`,
		"``",
		`a @ b`,
		`1e+`,
	} {
		s := scanner.NewString(input)
		for s.Next() {
		}
		if s.Err() == nil {
			t.Errorf("Input %#q: got no error, want one", input)
		} else {
			t.Logf("Input %#q: got expected error: %v", input, s.Err())
		}
	}
}

func TestScannerSpan(t *testing.T) {
	type tokPos struct {
		Tok scanner.Token
		Pos string
	}
	tests := []struct {
		input string
		want  []tokPos
	}{
		{"", nil},
		{"0 1", []tokPos{{scanner.Integer, "0..1"}, {scanner.Integer, "2..3"}}},
		{`"foo"`, []tokPos{{scanner.String, "0..5"}}},
		{`x<=10`, []tokPos{{scanner.Name, "0..1"}, {scanner.Punct, "1..3"}, {scanner.Integer, "3..5"}}},
	}
	for _, tc := range tests {
		var got []tokPos
		s := scanner.NewString(tc.input)
		for s.Next() {
			got = append(got, tokPos{s.Token(), s.Span().String()})
		}
		if s.Err() != nil {
			t.Errorf("Next failed: %v", s.Err())
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Input: %#q\nTokens: (-want, +got)\n%s", tc.input, diff)
		}
	}
}

func TestCaret(t *testing.T) {
	const src = "avg(wieght)"
	got := scanner.Span{Pos: 4, End: 10}.Caret(src)
	want := "avg(wieght)\n    ^^^^^^"
	if got != want {
		t.Errorf("Caret: got\n%s\nwant\n%s", got, want)
	}
}
