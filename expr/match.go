// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package expr

import (
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/syms"
)

// MatchScalar matches a scalar expression at the scanner's position:
// additive chains of multiplicative terms over integer literals,
// variable references, and parenthesized subexpressions. This covers
// the expressions that appear as clause arguments; it is not a general
// expression grammar. On No or Error the position is restored.
func MatchScalar(s *scan.Scanner, ns *syms.Namespace) (*Expr, scan.Match) {
	save := s.Locus()
	e, m := matchAdditive(s, ns)
	if m != scan.Yes {
		s.Restore(save)
		return nil, m
	}
	e.Resolve()
	return e, scan.Yes
}

func matchAdditive(s *scan.Scanner, ns *syms.Namespace) (*Expr, scan.Match) {
	left, m := matchTerm(s, ns)
	if m != scan.Yes {
		return nil, m
	}
	for {
		var op Op
		switch {
		case s.MatchChar('+') == scan.Yes:
			op = OpPlus
		case s.MatchChar('-') == scan.Yes:
			op = OpMinus
		default:
			return left, scan.Yes
		}
		right, m := matchTerm(s, ns)
		if m != scan.Yes {
			return nil, scan.Error
		}
		left = NewBinop(op, left, right)
	}
}

func matchTerm(s *scan.Scanner, ns *syms.Namespace) (*Expr, scan.Match) {
	left, m := matchFactor(s, ns)
	if m != scan.Yes {
		return nil, m
	}
	for {
		var op Op
		switch {
		case s.MatchChar('*') == scan.Yes:
			op = OpTimes
		case s.MatchChar('/') == scan.Yes:
			op = OpDivide
		default:
			return left, scan.Yes
		}
		right, m := matchFactor(s, ns)
		if m != scan.Yes {
			return nil, scan.Error
		}
		left = NewBinop(op, left, right)
	}
}

func matchFactor(s *scan.Scanner, ns *syms.Namespace) (*Expr, scan.Match) {
	loc := s.Locus()
	if v, m := s.MatchInt(); m == scan.Yes {
		e := NewInt(v)
		e.Loc = loc
		return e, scan.Yes
	}
	if s.MatchChar('(') == scan.Yes {
		e, m := matchAdditive(s, ns)
		if m != scan.Yes || s.MatchChar(')') != scan.Yes {
			return nil, scan.Error
		}
		return e, scan.Yes
	}
	if _, m := s.Name(); m == scan.Yes {
		// Re-match as a full variable reference so that sections and
		// element subscripts are parsed.
		s.Restore(loc)
		return MatchVariable(s, ns)
	}
	return nil, scan.No
}

// MatchVariable matches a variable reference: a name with an optional
// subscript/section list and an optional cosubscript list. On No or
// Error the position is restored.
func MatchVariable(s *scan.Scanner, ns *syms.Namespace) (*Expr, scan.Match) {
	save := s.Locus()
	loc := s.Locus()
	name, m := s.Name()
	if m != scan.Yes {
		return nil, scan.No
	}
	sym := ns.Get(name)
	sym.SetReferenced()
	e := &Expr{Loc: loc, Kind: Variable, Sym: sym, TS: sym.TS}
	if s.MatchChar('(') == scan.Yes {
		ref := &Ref{Kind: RefArray}
		for {
			dim, m := matchDim(s, ns)
			if m != scan.Yes {
				s.Restore(save)
				return nil, scan.Error
			}
			ref.Dims = append(ref.Dims, dim)
			if s.MatchChar(',') == scan.Yes {
				continue
			}
			if s.MatchChar(')') == scan.Yes {
				break
			}
			s.Restore(save)
			return nil, scan.Error
		}
		e.Refs = append(e.Refs, ref)
		if s.MatchChar('[') == scan.Yes {
			for {
				if _, m := matchAdditive(s, ns); m != scan.Yes {
					s.Restore(save)
					return nil, scan.Error
				}
				ref.Codimen++
				if s.MatchChar(',') == scan.Yes {
					continue
				}
				break
			}
			if s.MatchChar(']') != scan.Yes {
				s.Restore(save)
				return nil, scan.Error
			}
		}
	}
	e.Resolve()
	return e, scan.Yes
}

func matchDim(s *scan.Scanner, ns *syms.Namespace) (DimSpec, scan.Match) {
	var dim DimSpec
	if start, m := matchAdditive(s, ns); m == scan.Yes {
		dim.Start = start
	}
	if s.MatchChar(':') != scan.Yes {
		if dim.Start == nil {
			return dim, scan.No
		}
		dim.Type = DimenElement
		return dim, scan.Yes
	}
	dim.Type = DimenRange
	if end, m := matchAdditive(s, ns); m == scan.Yes {
		dim.End = end
	}
	if s.MatchChar(':') == scan.Yes {
		stride, m := matchAdditive(s, ns)
		if m != scan.Yes {
			return dim, scan.No
		}
		dim.Stride = stride
	}
	return dim, scan.Yes
}
