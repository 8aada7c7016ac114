// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package expr

import (
	"testing"

	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/syms"
)

func TestMatchScalar(t *testing.T) {
	ns := syms.NewNamespace(nil)
	for _, c := range []struct {
		text string
		want string
	}{
		{"4", "4"},
		{"n", "n"},
		{"n+1", "(n + 1)"},
		{"2*n + 1", "((2 * n) + 1)"},
		{"(n+1)*2", "((n + 1) * 2)"},
		{"a - b - c", "((a - b) - c)"},
	} {
		s := scan.New("", c.text)
		e, m := MatchScalar(s, ns)
		if m != scan.Yes {
			t.Errorf("%q: got %v, want Yes", c.text, m)
			continue
		}
		if got := e.String(); got != c.want {
			t.Errorf("%q: got %q, want %q", c.text, got, c.want)
		}
	}
}

func TestMatchScalarNo(t *testing.T) {
	ns := syms.NewNamespace(nil)
	s := scan.New("", ")")
	if _, m := MatchScalar(s, ns); m == scan.Yes {
		t.Error("matched nothing")
	}
	if got, want := s.Peek(), byte(')'); got != want {
		t.Errorf("position not restored: at %q, want %q", got, want)
	}
}

func TestMatchVariable(t *testing.T) {
	ns := syms.NewNamespace(nil)
	for _, c := range []struct {
		text       string
		rank       int
		dims       int
		lastIsElem bool
	}{
		{"a", 0, 0, false},
		{"a(5)", 0, 1, true},
		{"a(1:n)", 1, 1, false},
		{"a(1:n,j)", 1, 2, true},
	} {
		s := scan.New("", c.text)
		e, m := MatchVariable(s, ns)
		if m != scan.Yes {
			t.Errorf("%q: got %v, want Yes", c.text, m)
			continue
		}
		if got, want := e.Rank, c.rank; got != want {
			t.Errorf("%q: got rank %v, want %v", c.text, got, want)
		}
		if c.dims == 0 {
			if len(e.Refs) != 0 {
				t.Errorf("%q: unexpected refs", c.text)
			}
			continue
		}
		dims := e.Refs[0].Dims
		if got, want := len(dims), c.dims; got != want {
			t.Errorf("%q: got %v dims, want %v", c.text, got, want)
			continue
		}
		last := dims[len(dims)-1]
		if got, want := last.Type == DimenElement, c.lastIsElem; got != want {
			t.Errorf("%q: got element %v, want %v", c.text, got, want)
		}
	}
}

func TestMatchVariableStride(t *testing.T) {
	ns := syms.NewNamespace(nil)
	s := scan.New("", "a(1:n:2)")
	e, m := MatchVariable(s, ns)
	if m != scan.Yes {
		t.Fatalf("got %v, want Yes", m)
	}
	d := e.Refs[0].Dims[0]
	if d.Stride == nil {
		t.Fatal("stride not parsed")
	}
	if v, ok := d.Stride.ConstInt(); !ok || v != 2 {
		t.Errorf("got stride %v, want 2", d.Stride)
	}
}

func TestMatchVariableCosubscript(t *testing.T) {
	ns := syms.NewNamespace(nil)
	s := scan.New("", "a(1)[2]")
	e, m := MatchVariable(s, ns)
	if m != scan.Yes {
		t.Fatalf("got %v, want Yes", m)
	}
	if got, want := e.Refs[0].Codimen, 1; got != want {
		t.Errorf("got %v codimensions, want %v", got, want)
	}
}
