// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package scan implements the backtracking character matcher used by
// directive parsers. A Scanner holds a position (Locus) into an
// immutable text buffer; all matching operations are speculative: a
// failed match restores the position it started from, and callers may
// save and restore loci freely to implement backtracking.
//
// Matching operations return a tri-state Match: Yes on success, No on
// a clean non-match, and Error when the input is recognized but
// malformed in a way that poisons the enclosing directive.
package scan

import "fmt"

// Match is the tri-state result of a matching operation.
type Match int

const (
	// No indicates the text at the current position does not match.
	No Match = iota
	// Yes indicates a successful match; the position has advanced.
	Yes
	// Error indicates a malformed construct; the enclosing directive
	// match must fail.
	Error
)

// String renders m for diagnostics and test output.
func (m Match) String() string {
	switch m {
	case No:
		return "no"
	case Yes:
		return "yes"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("match(%d)", int(m))
	}
}

// A Locus is a position in the scanned text. Loci are values; saving
// and later restoring one implements backtracking.
type Locus struct {
	File   string
	Line   int
	Column int

	off int
}

// String renders the locus in file:line:column form.
func (l Locus) String() string {
	file := l.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
}

// A Scanner scans directive text. The zero Scanner is not valid; use
// New.
type Scanner struct {
	src []byte
	loc Locus
}

// New returns a scanner over text, reporting positions against the
// provided filename.
func New(file, text string) *Scanner {
	return &Scanner{
		src: []byte(text),
		loc: Locus{File: file, Line: 1, Column: 1},
	}
}

// Locus returns the current position.
func (s *Scanner) Locus() Locus { return s.loc }

// Restore backtracks the scanner to a previously saved locus.
func (s *Scanner) Restore(l Locus) { s.loc = l }

// Peek returns the byte at the current position, or 0 at end of input.
func (s *Scanner) Peek() byte {
	if s.loc.off >= len(s.src) {
		return 0
	}
	return s.src[s.loc.off]
}

func (s *Scanner) next() (byte, bool) {
	if s.loc.off >= len(s.src) {
		return 0, false
	}
	c := s.src[s.loc.off]
	s.loc.off++
	if c == '\n' {
		s.loc.Line++
		s.loc.Column = 1
	} else {
		s.loc.Column++
	}
	return c, true
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func isLetter(c byte) bool { c = lower(c); return 'a' <= c && c <= 'z' }

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isNameRune(c byte) bool { return isLetter(c) || isDigit(c) || c == '_' }

// Gobble consumes any run of blanks at the current position.
func (s *Scanner) Gobble() {
	for isBlank(s.Peek()) {
		s.next()
	}
}

// MatchChar matches the next non-blank character against c.
func (s *Scanner) MatchChar(c byte) Match {
	save := s.loc
	s.Gobble()
	if s.Peek() == c {
		s.next()
		return Yes
	}
	s.loc = save
	return No
}

// MatchSpace matches one or more blanks.
func (s *Scanner) MatchSpace() Match {
	if !isBlank(s.Peek()) {
		return No
	}
	s.Gobble()
	return Yes
}

// Name matches an identifier (a letter followed by letters, digits,
// and underscores), skipping leading blanks. The returned name is
// lowercased: directive text is case-insensitive and all symbol
// lookups go through canonical lowercase names.
func (s *Scanner) Name() (string, Match) {
	save := s.loc
	s.Gobble()
	if !isLetter(s.Peek()) {
		s.loc = save
		return "", No
	}
	var b []byte
	for isNameRune(s.Peek()) {
		c, _ := s.next()
		b = append(b, lower(c))
	}
	return string(b), Yes
}

// Literal matches pat against the input. A blank in pat matches an
// optional run of blanks in the input; letters match
// case-insensitively. On failure the position is restored.
func (s *Scanner) Literal(pat string) Match {
	save := s.loc
	for i := 0; i < len(pat); i++ {
		if pat[i] == ' ' {
			s.Gobble()
			continue
		}
		if lower(s.Peek()) != lower(pat[i]) {
			s.loc = save
			return No
		}
		s.next()
	}
	return Yes
}

// Keyword matches pat like Literal but additionally requires that the
// match is not a prefix of a longer name, so that "do" does not match
// the head of "double".
func (s *Scanner) Keyword(pat string) Match {
	save := s.loc
	if s.Literal(pat) != Yes {
		return No
	}
	if n := len(pat); n > 0 && isNameRune(pat[n-1]) && isNameRune(s.Peek()) {
		s.loc = save
		return No
	}
	return Yes
}

// EOS matches the end of a directive: optional blanks followed by a
// newline, a "!" comment running to the end of the line, or the end of
// input. On failure the position is restored.
func (s *Scanner) EOS() Match {
	save := s.loc
	s.Gobble()
	switch s.Peek() {
	case '!':
		for {
			c, ok := s.next()
			if !ok || c == '\n' {
				return Yes
			}
		}
	case '\n':
		s.next()
		return Yes
	case 0:
		return Yes
	}
	s.loc = save
	return No
}

// SkipLine consumes input up to and including the next newline. It
// returns No at end of input.
func (s *Scanner) SkipLine() Match {
	for {
		c, ok := s.next()
		if !ok {
			return No
		}
		if c == '\n' {
			return Yes
		}
	}
}

// MatchInt matches an unsigned decimal integer literal.
func (s *Scanner) MatchInt() (int64, Match) {
	save := s.loc
	s.Gobble()
	if !isDigit(s.Peek()) {
		s.loc = save
		return 0, No
	}
	var v int64
	for isDigit(s.Peek()) {
		c, _ := s.next()
		v = v*10 + int64(c-'0')
	}
	return v, Yes
}
