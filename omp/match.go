// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package omp implements the OpenMP directive front end: a clause
// matcher gated by per-directive permission masks, matchers for the
// directive statements themselves, a clause cross-validator, and the
// atomic-update canonicalizer. Parsing is speculative: every matcher
// restores the scanner position on failure, and a malformed clause
// fails the whole directive atomically.
package omp

import (
	"github.com/grailbio/directive/clause"
	"github.com/grailbio/directive/diag"
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/log"
	"github.com/grailbio/directive/syms"
)

// Mask is a set of permitted clauses. Each directive matcher passes
// the mask of clauses its directive accepts; the clause matcher skips
// keywords outside the mask.
type Mask uint32

const (
	ClausePrivate Mask = 1 << iota
	ClauseFirstprivate
	ClauseLastprivate
	ClauseCopyprivate
	ClauseShared
	ClauseCopyin
	ClauseReduction
	ClauseIf
	ClauseNumThreads
	ClauseSchedule
	ClauseDefault
	ClauseOrdered
	ClauseCollapse
	ClauseUntied
	ClauseFinal
	ClauseMergeable
	ClauseAligned
	ClauseDepend
	ClauseInbranch
	ClauseLinear
	ClauseNotinbranch
	ClauseProcBind
	ClauseSafelen
	ClauseSimdlen
	ClauseUniform
)

// Per-directive clause permission masks.
const (
	parallelClauses = ClausePrivate | ClauseFirstprivate | ClauseShared |
		ClauseCopyin | ClauseReduction | ClauseIf | ClauseNumThreads |
		ClauseDefault | ClauseProcBind
	doClauses = ClausePrivate | ClauseFirstprivate | ClauseLastprivate |
		ClauseReduction | ClauseSchedule | ClauseOrdered | ClauseCollapse
	sectionsClauses = ClausePrivate | ClauseFirstprivate |
		ClauseLastprivate | ClauseReduction
	simdClauses = ClausePrivate | ClauseLastprivate | ClauseReduction |
		ClauseCollapse | ClauseSafelen | ClauseLinear | ClauseAligned
	taskClauses = ClausePrivate | ClauseFirstprivate | ClauseShared |
		ClauseIf | ClauseDefault | ClauseUntied | ClauseFinal |
		ClauseMergeable | ClauseDepend
	singleClauses      = ClausePrivate | ClauseFirstprivate
	declareSimdClauses = ClauseSimdlen | ClauseLinear | ClauseUniform |
		ClauseAligned | ClauseInbranch | ClauseNotinbranch
)

// A Parser matches directive lines into statement nodes. Symbols
// resolve against NS; recoverable violations report through Diag.
type Parser struct {
	S    *scan.Scanner
	NS   *syms.Namespace
	Diag *diag.Reporter
	Log  *log.Logger

	// DeclareSimd chains the declare simd records parsed in this scope,
	// newest first.
	DeclareSimd *clause.DeclareSimd
}

// matchClauses consumes clauses until end of directive. first tells
// whether the first clause may appear without a separator; needsSpace
// requires whitespace before the first bare clause. On any malformed
// clause the scanner is left at the offending text, the end-of-
// directive check fails, and the partial set is dropped.
func (p *Parser) matchClauses(mask Mask, first, needsSpace bool) (*clause.Set, scan.Match) {
	s := p.S
	c := new(clause.Set)
loop:
	for {
		if (first || s.MatchChar(',') != scan.Yes) &&
			needsSpace && s.MatchSpace() != scan.Yes {
			break
		}
		needsSpace = false
		first = false
		s.Gobble()
		clauseStart := s.Locus()

		if mask&ClauseIf != 0 && c.If == nil {
			if e, m := p.parenExpr("if ("); m == scan.Yes {
				c.If = e
				continue
			}
		}
		if mask&ClauseFinal != 0 && c.Final == nil {
			if e, m := p.parenExpr("final ("); m == scan.Yes {
				c.Final = e
				continue
			}
		}
		if mask&ClauseNumThreads != 0 && c.NumThreads == nil {
			if e, m := p.parenExpr("num_threads ("); m == scan.Yes {
				c.NumThreads = e
				continue
			}
		}
		if mask&ClausePrivate != 0 {
			if _, m := p.variableList("private (", c, clause.ListPrivate, true, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseFirstprivate != 0 {
			if _, m := p.variableList("firstprivate (", c, clause.ListFirstprivate, true, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseLastprivate != 0 {
			if _, m := p.variableList("lastprivate (", c, clause.ListLastprivate, true, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseCopyprivate != 0 {
			if _, m := p.variableList("copyprivate (", c, clause.ListCopyprivate, true, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseShared != 0 {
			if _, m := p.variableList("shared (", c, clause.ListShared, true, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseCopyin != 0 {
			if _, m := p.variableList("copyin (", c, clause.ListCopyin, true, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseReduction != 0 && s.Literal("reduction (") == scan.Yes {
			rop := clause.List(-1)
			switch {
			case s.MatchChar('+') == scan.Yes:
				rop = clause.ListReductionPlus
			case s.MatchChar('*') == scan.Yes:
				rop = clause.ListReductionTimes
			case s.MatchChar('-') == scan.Yes:
				rop = clause.ListReductionMinus
			case s.Literal(".and.") == scan.Yes:
				rop = clause.ListReductionAnd
			case s.Literal(".or.") == scan.Yes:
				rop = clause.ListReductionOr
			case s.Literal(".eqv.") == scan.Yes:
				rop = clause.ListReductionEqv
			case s.Literal(".neqv.") == scan.Yes:
				rop = clause.ListReductionNeqv
			default:
				if name, m := s.Name(); m == scan.Yes {
					rop = p.reductionName(name, clauseStart)
				}
			}
			if rop >= 0 {
				if _, m := p.variableList(" :", c, rop, false, nil, false); m == scan.Yes {
					continue
				}
			}
			s.Restore(clauseStart)
		}
		if mask&ClauseDefault != 0 && c.Default == clause.DefaultUnset {
			switch {
			case s.Literal("default ( shared )") == scan.Yes:
				c.Default = clause.DefaultShared
			case s.Literal("default ( private )") == scan.Yes:
				c.Default = clause.DefaultPrivate
			case s.Literal("default ( none )") == scan.Yes:
				c.Default = clause.DefaultNone
			case s.Literal("default ( firstprivate )") == scan.Yes:
				c.Default = clause.DefaultFirstprivate
			}
			if c.Default != clause.DefaultUnset {
				continue
			}
		}
		if mask&ClauseSchedule != 0 && c.Sched == clause.SchedNone &&
			s.Literal("schedule (") == scan.Yes {
			switch {
			case s.Keyword("static") == scan.Yes:
				c.Sched = clause.SchedStatic
			case s.Keyword("dynamic") == scan.Yes:
				c.Sched = clause.SchedDynamic
			case s.Keyword("guided") == scan.Yes:
				c.Sched = clause.SchedGuided
			case s.Keyword("runtime") == scan.Yes:
				c.Sched = clause.SchedRuntime
			case s.Keyword("auto") == scan.Yes:
				c.Sched = clause.SchedAuto
			}
			if c.Sched != clause.SchedNone {
				if c.Sched != clause.SchedRuntime && c.Sched != clause.SchedAuto &&
					s.MatchChar(',') == scan.Yes {
					e, m := expr.MatchScalar(s, p.NS)
					if m != scan.Yes {
						c.Sched = clause.SchedNone
						s.Restore(clauseStart)
						break loop
					}
					c.ChunkSize = e
				}
				if s.MatchChar(')') == scan.Yes {
					continue
				}
				c.Sched = clause.SchedNone
				c.ChunkSize = nil
			}
			s.Restore(clauseStart)
		}
		if mask&ClauseOrdered != 0 && !c.Ordered && s.Keyword("ordered") == scan.Yes {
			c.Ordered = true
			continue
		}
		if mask&ClauseUntied != 0 && !c.Untied && s.Keyword("untied") == scan.Yes {
			c.Untied = true
			continue
		}
		if mask&ClauseMergeable != 0 && !c.Mergeable && s.Keyword("mergeable") == scan.Yes {
			c.Mergeable = true
			continue
		}
		if mask&ClauseCollapse != 0 && c.Collapse == 0 {
			if e, m := p.parenExpr("collapse ("); m == scan.Yes {
				v, ok := e.ConstInt()
				if !ok || v <= 0 {
					p.Diag.Errorf(clauseStart, "COLLAPSE clause argument not constant positive integer")
					v = 1
				}
				c.Collapse = int(v)
				continue
			}
		}
		if mask&ClauseInbranch != 0 && !c.Inbranch && !c.Notinbranch &&
			s.Keyword("inbranch") == scan.Yes {
			c.Inbranch = true
			continue
		}
		if mask&ClauseNotinbranch != 0 && !c.Notinbranch && !c.Inbranch &&
			s.Keyword("notinbranch") == scan.Yes {
			c.Notinbranch = true
			continue
		}
		if mask&ClauseProcBind != 0 && c.ProcBind == clause.ProcBindUnset {
			switch {
			case s.Literal("proc_bind ( master )") == scan.Yes:
				c.ProcBind = clause.ProcBindMaster
			case s.Literal("proc_bind ( spread )") == scan.Yes:
				c.ProcBind = clause.ProcBindSpread
			case s.Literal("proc_bind ( close )") == scan.Yes:
				c.ProcBind = clause.ProcBindClose
			}
			if c.ProcBind != clause.ProcBindUnset {
				continue
			}
		}
		if mask&ClauseSafelen != 0 && c.Safelen == nil {
			if e, m := p.parenExpr("safelen ("); m == scan.Yes {
				c.Safelen = e
				continue
			}
		}
		if mask&ClauseSimdlen != 0 && c.Simdlen == nil {
			if e, m := p.parenExpr("simdlen ("); m == scan.Yes {
				c.Simdlen = e
				continue
			}
		}
		if mask&ClauseUniform != 0 {
			if _, m := p.variableList("uniform (", c, clause.ListUniform, false, nil, false); m == scan.Yes {
				continue
			}
		}
		if mask&ClauseAligned != 0 {
			var endColon bool
			if start, m := p.variableList("aligned (", c, clause.ListAligned, false, &endColon, false); m == scan.Yes {
				var alignment *expr.Expr
				if endColon {
					e, em := expr.MatchScalar(s, p.NS)
					if em != scan.Yes || s.MatchChar(')') != scan.Yes {
						c.Lists[clause.ListAligned] = c.Lists[clause.ListAligned][:start]
						s.Restore(clauseStart)
						break loop
					}
					alignment = e
				}
				// All but the last entry get a copy; the last owns the
				// original.
				items := c.Lists[clause.ListAligned][start:]
				for i, it := range items {
					if i < len(items)-1 && alignment != nil {
						it.Expr = alignment.Copy()
					} else {
						it.Expr = alignment
					}
				}
				continue
			}
		}
		if mask&ClauseLinear != 0 {
			var endColon bool
			if start, m := p.variableList("linear (", c, clause.ListLinear, false, &endColon, false); m == scan.Yes {
				var step *expr.Expr
				if endColon {
					e, em := expr.MatchScalar(s, p.NS)
					if em != scan.Yes || s.MatchChar(')') != scan.Yes {
						c.Lists[clause.ListLinear] = c.Lists[clause.ListLinear][:start]
						s.Restore(clauseStart)
						break loop
					}
					step = e
				} else {
					step = expr.NewInt(1)
					step.Loc = clauseStart
				}
				// The step attaches to the head entry only.
				c.Lists[clause.ListLinear][start].Expr = step
				continue
			}
		}
		if mask&ClauseDepend != 0 {
			if _, m := p.variableList("depend ( in : ", c, clause.ListDependIn, false, nil, true); m == scan.Yes {
				continue
			}
			if _, m := p.variableList("depend ( out : ", c, clause.ListDependOut, false, nil, true); m == scan.Yes {
				continue
			}
			if _, m := p.variableList("depend ( inout : ", c, clause.ListDependOut, false, nil, true); m == scan.Yes {
				continue
			}
		}
		break
	}
	if s.EOS() != scan.Yes {
		return nil, scan.Error
	}
	return c, scan.Yes
}

// parenExpr matches lead followed by a scalar expression and a closing
// paren. lead includes the opening paren, e.g. "if (".
func (p *Parser) parenExpr(lead string) (*expr.Expr, scan.Match) {
	save := p.S.Locus()
	if p.S.Literal(lead) != scan.Yes {
		return nil, scan.No
	}
	e, m := expr.MatchScalar(p.S, p.NS)
	if m != scan.Yes || p.S.MatchChar(')') != scan.Yes {
		p.S.Restore(save)
		return nil, scan.No
	}
	return e, scan.Yes
}

// variableList matches lead followed by a comma-separated list of
// names, appending an item per name to list l of c. Common blocks
// (allowCommon) expand to their member symbols in declaration order.
// With allowSections, a name followed by a subscript list parses as a
// full variable reference attached to the item. When endColon is
// non-nil, a ":" terminates the list in place of ")" and reports
// through *endColon; the caller parses the tail expression and the
// closing paren. The returned index is the position of the first item
// appended.
func (p *Parser) variableList(lead string, c *clause.Set, l clause.List, allowCommon bool, endColon *bool, allowSections bool) (int, scan.Match) {
	s := p.S
	save := s.Locus()
	start := len(c.Lists[l])
	bad := func() (int, scan.Match) {
		p.Diag.Errorf(s.Locus(), "Syntax error in OpenMP variable list")
		c.Lists[l] = c.Lists[l][:start]
		s.Restore(save)
		return start, scan.Error
	}
	if s.Literal(lead) != scan.Yes {
		return start, scan.No
	}
	for {
		s.Gobble()
		itemLoc := s.Locus()
		if name, m := s.Name(); m == scan.Yes {
			if allowSections && s.Peek() == '(' {
				s.Restore(itemLoc)
				e, vm := expr.MatchVariable(s, p.NS)
				if vm != scan.Yes {
					return bad()
				}
				it := c.Append(l, e.Sym)
				it.Expr = e
			} else {
				sym := p.NS.Get(name)
				sym.SetReferenced()
				c.Append(l, sym)
			}
		} else if allowCommon && s.MatchChar('/') == scan.Yes {
			bname, m := s.Name()
			if m != scan.Yes || s.MatchChar('/') != scan.Yes {
				return bad()
			}
			blk := p.NS.Common(bname)
			if blk == nil {
				p.Diag.Errorf(itemLoc, "COMMON block /%s/ not found", bname)
				c.Lists[l] = c.Lists[l][:start]
				s.Restore(save)
				return start, scan.Error
			}
			for _, sym := range blk.Head {
				sym.SetReferenced()
				c.Append(l, sym)
			}
		} else {
			return bad()
		}
		if endColon != nil && s.MatchChar(':') == scan.Yes {
			*endColon = true
			break
		}
		if s.MatchChar(',') != scan.Yes {
			break
		}
	}
	if (endColon == nil || !*endColon) && s.MatchChar(')') != scan.Yes {
		return bad()
	}
	return start, scan.Yes
}

// reductionName resolves a bare reduction name to its list slot.
// Shadowing symbols must be genuine intrinsics; an undeclared or
// unclassified name is implicitly declared an intrinsic procedure.
func (p *Parser) reductionName(name string, loc scan.Locus) clause.List {
	n := name
	sym := p.NS.Get(name)
	a := &sym.Attr
	if a.Intrinsic {
		n = sym.Name
	} else if (a.Flavor != syms.FlavorUnknown && a.Flavor != syms.FlavorProcedure) ||
		a.External || a.Generic || a.Entry || a.Result || a.Dummy ||
		a.Subroutine || a.Pointer || a.Target ||
		a.CrayPointer || a.CrayPointee ||
		(a.Proc != syms.ProcUnknown && a.Proc != syms.ProcIntrinsic) ||
		a.IfSource || sym.NS.ProcName == sym {
		p.Diag.Errorf(loc, "%s is not INTRINSIC procedure name", name)
		return -1
	} else {
		n = sym.Name
	}
	rop := clause.List(-1)
	switch n {
	case "max":
		rop = clause.ListReductionMax
	case "min":
		rop = clause.ListReductionMin
	case "iand":
		rop = clause.ListReductionIand
	case "ior":
		rop = clause.ListReductionIor
	case "ieor":
		rop = clause.ListReductionIeor
	}
	if rop >= 0 && !sym.Attr.Intrinsic && !sym.Attr.UseAssoc {
		if err := sym.AddFlavor(syms.FlavorProcedure); err != nil {
			p.Diag.Errorf(loc, "%v", err)
			return -1
		}
		if err := sym.AddIntrinsic(); err != nil {
			p.Diag.Errorf(loc, "%v", err)
			return -1
		}
	}
	return rop
}
