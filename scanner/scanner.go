// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

// Package scanner implements a lexical scanner for the expression language
// used by the numtools filters.
package scanner

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Token is the type of a lexical token in the grammar.
type Token byte

// Constants defining the valid Token values.
const (
	Invalid Token = iota // invalid token
	Integer              // number: integer with no fraction or exponent
	Float                // number: with a fraction and/or exponent
	String               // quoted string
	Name                 // identifier, or a backquoted name
	Punct                // operator or punctuation
)

var tokenStr = [...]string{
	Invalid: "invalid token",
	Integer: "integer",
	Float:   "float",
	String:  "string",
	Name:    "name",
	Punct:   "punctuation",
}

func (t Token) String() string {
	v := int(t)
	if v >= len(tokenStr) {
		return tokenStr[Invalid]
	}
	return tokenStr[v]
}

// Operators of two bytes. Any other operator is a single byte.
var twoByteOps = []string{"==", "!=", "<=", ">=", "&&", "||", "**", "//"}

const oneByteOps = "+-*/%()[],;?:<>!="

// A Scanner reads lexical tokens from an input stream.  Each call to Next
// advances the scanner to the next token, or reports an error.
type Scanner struct {
	r   *bufio.Reader
	buf bytes.Buffer // current token, as written
	dec bytes.Buffer // current token, decoded (strings and quoted names)
	tok Token
	err error

	pos, end int // start and end offsets of current token
	last     int // size in bytes of last-read input rune
}

// New constructs a new lexical scanner that consumes input from r.
func New(r io.Reader) *Scanner {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Scanner{r: br}
}

// NewString constructs a scanner that consumes the text of s.
func NewString(s string) *Scanner { return New(strings.NewReader(s)) }

// Next advances s to the next token of the input, and reports whether a token
// is available. At the end of the input, or if an error occurs, Next returns
// false; use Err to distinguish these cases.
func (s *Scanner) Next() bool {
	s.buf.Reset()
	s.dec.Reset()
	s.err = nil
	s.tok = Invalid
	s.pos = s.end

	for {
		ch, err := s.rune()
		if err == io.EOF {
			return false
		} else if err != nil {
			s.fail(err)
			return false
		}

		// Discard whitespace.
		if unicode.IsSpace(ch) {
			s.pos = s.end
			continue
		}

		switch {
		case isDigit(ch) || ch == '.':
			return s.scanNumber(ch) == nil
		case ch == '"' || ch == '\'':
			return s.scanString(ch) == nil
		case ch == '`':
			return s.scanQuotedName(ch) == nil
		case isNameStart(ch):
			return s.scanName(ch) == nil
		default:
			return s.scanPunct(ch) == nil
		}
	}
}

// Token returns the type of the current token.
func (s *Scanner) Token() Token { return s.tok }

// Err returns the last error reported by Next, or nil if Next stopped at the
// end of the input.
func (s *Scanner) Err() error { return s.err }

// Text returns the undecoded text of the current token.
func (s *Scanner) Text() string { return s.buf.String() }

// Value returns the decoded text of the current token. For strings this is
// the content without quotes and with escapes resolved; for backquoted names
// it is the name without quotes. For other tokens it is the same as Text.
func (s *Scanner) Value() string {
	if s.tok == String || (s.tok == Name && s.dec.Len() != 0) {
		return s.dec.String()
	}
	return s.buf.String()
}

// Span returns the location span of the current token.
func (s *Scanner) Span() Span { return Span{Pos: s.pos, End: s.end} }

func (s *Scanner) scanString(open rune) error {
	s.buf.WriteRune(open)
	var esc bool
	for {
		ch, err := s.rune()
		if err == io.EOF {
			return s.failf("unterminated string")
		} else if err != nil {
			return s.fail(err)
		}
		s.buf.WriteRune(ch)
		if esc {
			// We are awaiting the completion of a \-escape.
			switch ch {
			case '"', '\'', '\\', '/':
				s.dec.WriteRune(ch)
			case 'b':
				s.dec.WriteByte('\b')
			case 'f':
				s.dec.WriteByte('\f')
			case 'n':
				s.dec.WriteByte('\n')
			case 'r':
				s.dec.WriteByte('\r')
			case 't':
				s.dec.WriteByte('\t')
			case 'u':
				r, err := s.readHex4()
				if err != nil {
					return s.failf("invalid Unicode escape: %w", err)
				}
				s.dec.WriteRune(r)
			default:
				return s.failf("invalid %q after escape", ch)
			}
			esc = false
		} else if ch == open {
			s.tok = String
			return nil
		} else if ch == '\\' {
			esc = true
		} else if ch < ' ' {
			return s.failf("unescaped control %q", ch)
		} else {
			s.dec.WriteRune(ch)
		}
	}
}

func (s *Scanner) scanQuotedName(open rune) error {
	s.buf.WriteRune(open)
	for {
		ch, err := s.rune()
		if err == io.EOF {
			return s.failf("unterminated quoted name")
		} else if err != nil {
			return s.fail(err)
		}
		s.buf.WriteRune(ch)
		if ch == open {
			if s.dec.Len() == 0 {
				return s.failf("empty quoted name")
			}
			s.tok = Name
			return nil
		}
		s.dec.WriteRune(ch)
	}
}

func (s *Scanner) scanNumber(start rune) error {
	s.buf.WriteRune(start)
	tok := Integer

	if start == '.' {
		// A leading dot must be followed by at least one digit.
		ch, err := s.require(isDigit, "digit")
		if err != nil {
			return err
		}
		s.buf.WriteRune(ch)
		tok = Float
	}

	// Consume the remainder of the integer (or fraction) part.
	ch, err := s.readWhile(isDigit)
	if err == io.EOF {
		s.tok = tok
		return nil
	} else if err != nil {
		return s.fail(err)
	}

	if ch == '.' && tok == Integer {
		s.buf.WriteRune(ch)
		tok = Float
		ch, err = s.readWhile(isDigit)
		if err == io.EOF {
			s.tok = tok
			return nil
		} else if err != nil {
			return s.fail(err)
		}
	}

	if ch == 'e' || ch == 'E' {
		s.buf.WriteRune(ch)
		tok = Float
		next, err := s.require(isExpStart, "exponent")
		if err != nil {
			return err
		}
		s.buf.WriteRune(next)
		if next == '-' || next == '+' {
			d, err := s.require(isDigit, "digit")
			if err != nil {
				return err
			}
			s.buf.WriteRune(d)
		}
		ch, err = s.readWhile(isDigit)
		if err == io.EOF {
			s.tok = tok
			return nil
		} else if err != nil {
			return s.fail(err)
		}
	}

	if isNameRune(ch) || ch == '.' {
		return s.failf("invalid %q in number", ch)
	}
	s.unrune()
	s.tok = tok
	return nil
}

func (s *Scanner) scanName(first rune) error {
	s.buf.WriteRune(first)
	_, err := s.readWhile(isNameRune)
	if err != nil && err != io.EOF {
		return s.fail(err)
	} else if err == nil {
		s.unrune()
	}
	s.tok = Name
	return nil
}

func (s *Scanner) scanPunct(first rune) error {
	s.buf.WriteRune(first)
	next, err := s.rune()
	if err == nil {
		pair := string(first) + string(next)
		for _, op := range twoByteOps {
			if pair == op {
				s.buf.WriteRune(next)
				s.tok = Punct
				return nil
			}
		}
		s.unrune()
	} else if err != io.EOF {
		return s.fail(err)
	}
	if first < 128 && strings.ContainsRune(oneByteOps, first) {
		s.tok = Punct
		return nil
	}
	return s.failf("unexpected %q", first)
}

func (s *Scanner) rune() (rune, error) {
	ch, nb, err := s.r.ReadRune()
	s.last = nb
	s.end += nb
	return ch, err
}

func (s *Scanner) unrune() {
	s.end -= s.last
	s.last = 0
	s.r.UnreadRune()
}

// require reads a single rune matching f from the input, or returns an error
// mentioning the desired label.
func (s *Scanner) require(f func(rune) bool, label string) (rune, error) {
	ch, err := s.rune()
	if err != nil {
		return 0, s.failf("want %s, got error: %w", label, err)
	} else if !f(ch) {
		s.unrune()
		return 0, s.failf("got %q, want %s", ch, label)
	}
	return ch, nil
}

// readWhile consumes runes matching f from the input until EOF or until a rune
// not matching f is found. The first non-matching rune (if any) is returned.
// It is the caller's responsibility to unread this rune, if desired.
func (s *Scanner) readWhile(f func(rune) bool) (rune, error) {
	for {
		ch, err := s.rune()
		if err != nil {
			return 0, err
		} else if !f(ch) {
			return ch, nil
		}
		s.buf.WriteRune(ch)
	}
}

// readHex4 reads exactly 4 hexadecimal digits from the input.
func (s *Scanner) readHex4() (rune, error) {
	var r rune
	for i := 0; i < 4; i++ {
		ch, err := s.rune()
		if err != nil {
			return 0, err
		} else if !isHexDigit(ch) {
			return 0, fmt.Errorf("not a hex digit: %q", ch)
		}
		s.buf.WriteRune(ch)
		r = r<<4 | hexValue(ch)
	}
	return r, nil
}

// PosError is the concrete type of errors reported by the scanner. It
// records the offset where scanning failed.
type PosError struct {
	Pos int
	Err error
}

func (p *PosError) Error() string {
	return fmt.Sprintf("%s (offset %d)", p.Err.Error(), p.Pos)
}

func (p *PosError) Unwrap() error { return p.Err }

func (s *Scanner) fail(err error) error {
	s.err = &PosError{Pos: s.end, Err: err}
	return s.err
}

func (s *Scanner) failf(msg string, args ...any) error {
	return s.fail(fmt.Errorf(msg, args...))
}

func isExpStart(ch rune) bool  { return ch == '-' || ch == '+' || isDigit(ch) }
func isDigit(ch rune) bool     { return '0' <= ch && ch <= '9' }
func isNameStart(ch rune) bool { return ch == '_' || ch == '$' || unicode.IsLetter(ch) }
func isNameRune(ch rune) bool  { return isNameStart(ch) || isDigit(ch) || ch == '.' }

func isHexDigit(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexValue(ch rune) rune {
	switch {
	case ch >= 'a':
		return ch - 'a' + 10
	case ch >= 'A':
		return ch - 'A' + 10
	}
	return ch - '0'
}
