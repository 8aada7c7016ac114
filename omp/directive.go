// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package omp

import (
	"github.com/grailbio/directive/clause"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/stmt"
	"github.com/grailbio/directive/syms"
)

// Directive matches one full directive line, sentinel included. The
// returned node carries the directive op and its clause set; block
// directives have empty bodies, to be attached by the caller. End
// markers ("end do" and friends) return with End set. Declarative
// directives (threadprivate, declare simd) record their effect on the
// symbol table or the parser and return a Nop node.
func (p *Parser) Directive() (*stmt.Node, scan.Match) {
	s := p.S
	save := s.Locus()
	s.Gobble()
	if s.Literal("!$omp") != scan.Yes {
		s.Restore(save)
		return nil, scan.No
	}
	loc := s.Locus()
	before := p.Diag.Count()
	n, m := p.directive(loc)
	if m != scan.Yes {
		// Sub-matchers report specific failures themselves; anything
		// that failed silently still lands on the reporter.
		if p.Diag.Count() == before {
			p.Diag.Errorf(loc, "Unclassifiable OpenMP directive")
		}
		s.Restore(save)
		return nil, scan.Error
	}
	p.Log.Debugf("%s: matched %s", loc, n.Op)
	return n, scan.Yes
}

func (p *Parser) directive(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	s.Gobble()
	switch {
	case s.Keyword("atomic") == scan.Yes:
		return p.atomicDirective(loc)
	case s.Keyword("barrier") == scan.Yes:
		return p.bare(stmt.OmpBarrier, loc)
	case s.Keyword("cancellation point") == scan.Yes:
		return p.cancellationPoint(loc)
	case s.Keyword("cancel") == scan.Yes:
		return p.cancel(loc)
	case s.Keyword("critical") == scan.Yes:
		return p.critical(loc)
	case s.Keyword("declare simd") == scan.Yes:
		return p.declareSimd(loc)
	case s.Keyword("do simd") == scan.Yes:
		return p.clauses(stmt.OmpDoSimd, doClauses|simdClauses, loc)
	case s.Keyword("do") == scan.Yes:
		return p.clauses(stmt.OmpDo, doClauses, loc)
	case s.Keyword("end") == scan.Yes:
		return p.end(loc)
	case s.Keyword("flush") == scan.Yes:
		return p.flush(loc)
	case s.Keyword("master") == scan.Yes:
		return p.bare(stmt.OmpMaster, loc)
	case s.Keyword("ordered") == scan.Yes:
		return p.bare(stmt.OmpOrdered, loc)
	case s.Keyword("parallel do simd") == scan.Yes:
		return p.clauses(stmt.OmpParallelDoSimd, parallelClauses|doClauses|simdClauses, loc)
	case s.Keyword("parallel do") == scan.Yes:
		return p.clauses(stmt.OmpParallelDo, parallelClauses|doClauses, loc)
	case s.Keyword("parallel sections") == scan.Yes:
		return p.clauses(stmt.OmpParallelSections, parallelClauses|sectionsClauses, loc)
	case s.Keyword("parallel workshare") == scan.Yes:
		return p.clauses(stmt.OmpParallelWorkshare, parallelClauses, loc)
	case s.Keyword("parallel") == scan.Yes:
		return p.clauses(stmt.OmpParallel, parallelClauses, loc)
	case s.Keyword("sections") == scan.Yes:
		return p.clauses(stmt.OmpSections, sectionsClauses, loc)
	case s.Keyword("section") == scan.Yes:
		return p.bare(stmt.OmpSection, loc)
	case s.Keyword("simd") == scan.Yes:
		return p.clauses(stmt.OmpSimd, simdClauses, loc)
	case s.Keyword("single") == scan.Yes:
		return p.clauses(stmt.OmpSingle, singleClauses, loc)
	case s.Keyword("taskgroup") == scan.Yes:
		return p.bare(stmt.OmpTaskgroup, loc)
	case s.Keyword("taskwait") == scan.Yes:
		return p.bare(stmt.OmpTaskwait, loc)
	case s.Keyword("taskyield") == scan.Yes:
		return p.bare(stmt.OmpTaskyield, loc)
	case s.Keyword("task") == scan.Yes:
		return p.clauses(stmt.OmpTask, taskClauses, loc)
	case s.Keyword("threadprivate") == scan.Yes:
		return p.threadprivate(loc)
	case s.Keyword("workshare") == scan.Yes:
		return p.bare(stmt.OmpWorkshare, loc)
	}
	p.Diag.Errorf(loc, "Unclassifiable OpenMP directive")
	return nil, scan.Error
}

// clauses matches the clause tail of a directive accepting mask.
func (p *Parser) clauses(op stmt.Op, mask Mask, loc scan.Locus) (*stmt.Node, scan.Match) {
	c, m := p.matchClauses(mask, true, true)
	if m != scan.Yes {
		return nil, scan.Error
	}
	n := stmt.NewNode(op, loc)
	n.Clauses = c
	return n, scan.Yes
}

// bare matches a directive that takes no clauses.
func (p *Parser) bare(op stmt.Op, loc scan.Locus) (*stmt.Node, scan.Match) {
	if p.S.EOS() != scan.Yes {
		p.Diag.Errorf(p.S.Locus(), "Unexpected junk after %s statement", op)
		return nil, scan.Error
	}
	return stmt.NewNode(op, loc), scan.Yes
}

func (p *Parser) critical(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	n := stmt.NewNode(stmt.OmpCritical, loc)
	if s.MatchChar('(') == scan.Yes {
		name, m := s.Name()
		if m != scan.Yes || s.MatchChar(')') != scan.Yes {
			return nil, scan.Error
		}
		n.Name = name
	}
	if s.EOS() != scan.Yes {
		p.Diag.Errorf(s.Locus(), "Unexpected junk after !$OMP CRITICAL statement")
		return nil, scan.Error
	}
	return n, scan.Yes
}

func (p *Parser) flush(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	n := stmt.NewNode(stmt.OmpFlush, loc)
	if s.MatchChar('(') == scan.Yes {
		for {
			name, m := s.Name()
			if m != scan.Yes {
				if s.MatchChar('/') == scan.Yes {
					bname, bm := s.Name()
					if bm != scan.Yes || s.MatchChar('/') != scan.Yes {
						return nil, scan.Error
					}
					blk := p.NS.Common(bname)
					if blk == nil {
						p.Diag.Errorf(loc, "COMMON block /%s/ not found", bname)
						return nil, scan.Error
					}
					for _, sym := range blk.Head {
						sym.SetReferenced()
						n.Vars = append(n.Vars, sym)
					}
				} else {
					return nil, scan.Error
				}
			} else {
				sym := p.NS.Get(name)
				sym.SetReferenced()
				n.Vars = append(n.Vars, sym)
			}
			if s.MatchChar(',') == scan.Yes {
				continue
			}
			break
		}
		if s.MatchChar(')') != scan.Yes {
			return nil, scan.Error
		}
	}
	if s.EOS() != scan.Yes {
		p.Diag.Errorf(s.Locus(), "Unexpected junk after !$OMP FLUSH statement")
		return nil, scan.Error
	}
	return n, scan.Yes
}

// atomicDirective matches the atomic operation keywords, with the
// seq_cst modifier accepted on either side of the operation.
func (p *Parser) atomicDirective(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	op := clause.AtomicUpdate
	seqCst := 0
	if s.Literal(" seq_cst") == scan.Yes {
		seqCst = 1
	}
	save := s.Locus()
	if seqCst == 1 && s.MatchChar(',') == scan.Yes {
		seqCst = 2
	}
	if seqCst == 2 || s.MatchSpace() == scan.Yes {
		s.Gobble()
		matched := true
		switch {
		case s.Keyword("update") == scan.Yes:
			op = clause.AtomicUpdate
		case s.Keyword("read") == scan.Yes:
			op = clause.AtomicRead
		case s.Keyword("write") == scan.Yes:
			op = clause.AtomicWrite
		case s.Keyword("capture") == scan.Yes:
			op = clause.AtomicCapture
		default:
			if seqCst == 2 {
				s.Restore(save)
			}
			matched = false
		}
		if matched && seqCst == 0 {
			if s.Literal(", seq_cst") == scan.Yes || s.Literal(" seq_cst") == scan.Yes {
				seqCst = 1
			}
		}
	}
	if s.EOS() != scan.Yes {
		p.Diag.Errorf(s.Locus(), "Unexpected junk after !$OMP ATOMIC statement")
		return nil, scan.Error
	}
	n := stmt.NewNode(stmt.OmpAtomic, loc)
	n.AtomicOp = op
	if seqCst != 0 {
		n.AtomicOp |= clause.AtomicSeqCst
	}
	return n, scan.Yes
}

func (p *Parser) cancelKind() clause.CancelKind {
	s := p.S
	s.Gobble()
	switch {
	case s.Keyword("parallel") == scan.Yes:
		return clause.CancelParallel
	case s.Keyword("sections") == scan.Yes:
		return clause.CancelSections
	case s.Keyword("do") == scan.Yes:
		return clause.CancelDo
	case s.Keyword("taskgroup") == scan.Yes:
		return clause.CancelTaskgroup
	}
	p.Diag.Errorf(s.Locus(), "Expected construct-type PARALLEL, SECTIONS, DO or TASKGROUP")
	return clause.CancelUnknown
}

func (p *Parser) cancel(loc scan.Locus) (*stmt.Node, scan.Match) {
	kind := p.cancelKind()
	if kind == clause.CancelUnknown {
		return nil, scan.Error
	}
	c, m := p.matchClauses(ClauseIf, false, true)
	if m != scan.Yes {
		return nil, scan.Error
	}
	c.Cancel = kind
	n := stmt.NewNode(stmt.OmpCancel, loc)
	n.Clauses = c
	return n, scan.Yes
}

func (p *Parser) cancellationPoint(loc scan.Locus) (*stmt.Node, scan.Match) {
	kind := p.cancelKind()
	if kind == clause.CancelUnknown {
		return nil, scan.Error
	}
	if p.S.EOS() != scan.Yes {
		p.Diag.Errorf(p.S.Locus(), "Unexpected junk after !$OMP CANCELLATION POINT statement")
		return nil, scan.Error
	}
	n := stmt.NewNode(stmt.OmpCancellationPoint, loc)
	n.Clauses = &clause.Set{Cancel: kind}
	return n, scan.Yes
}

// threadprivate matches the declarative threadprivate directive,
// marking the listed symbols and common blocks.
func (p *Parser) threadprivate(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	if s.MatchChar('(') != scan.Yes {
		return nil, scan.Error
	}
	for {
		s.Gobble()
		itemLoc := s.Locus()
		if name, m := s.Name(); m == scan.Yes {
			sym := p.NS.Get(name)
			if sym.Attr.InCommon {
				p.Diag.Errorf(itemLoc, "Threadprivate variable %s is an element of a COMMON block", sym.Name)
			} else if err := sym.AddThreadprivate(); err != nil {
				p.Diag.Errorf(itemLoc, "%v", err)
				return nil, scan.Error
			}
		} else if s.MatchChar('/') == scan.Yes {
			bname, m := s.Name()
			if m != scan.Yes || s.MatchChar('/') != scan.Yes {
				return nil, scan.Error
			}
			blk := p.NS.Common(bname)
			if blk == nil {
				p.Diag.Errorf(itemLoc, "COMMON block /%s/ not found", bname)
				return nil, scan.Error
			}
			blk.Threadprivate = true
			for _, sym := range blk.Head {
				if err := sym.AddThreadprivate(); err != nil {
					p.Diag.Errorf(itemLoc, "%v", err)
					return nil, scan.Error
				}
			}
		} else {
			return nil, scan.Error
		}
		if s.MatchChar(',') == scan.Yes {
			continue
		}
		break
	}
	if s.MatchChar(')') != scan.Yes || s.EOS() != scan.Yes {
		return nil, scan.Error
	}
	return stmt.NewNode(stmt.Nop, loc), scan.Yes
}

// declareSimd matches the declarative declare simd directive and
// chains a record on the parser, newest first.
func (p *Parser) declareSimd(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	var proc *syms.Symbol
	if s.MatchChar('(') == scan.Yes {
		name, m := s.Name()
		if m != scan.Yes || s.MatchChar(')') != scan.Yes {
			return nil, scan.Error
		}
		proc = p.NS.Get(name)
	}
	c, m := p.matchClauses(declareSimdClauses, true, false)
	if m != scan.Yes {
		return nil, scan.Error
	}
	if proc == nil {
		proc = p.NS.ProcName
	}
	p.DeclareSimd = &clause.DeclareSimd{
		Where:   loc,
		Proc:    proc,
		Clauses: c,
		Next:    p.DeclareSimd,
	}
	return stmt.NewNode(stmt.Nop, loc), scan.Yes
}

// end matches end-of-construct markers.
func (p *Parser) end(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	s.Gobble()
	var op stmt.Op
	allowNowait := false
	switch {
	case s.Keyword("parallel do simd") == scan.Yes:
		op = stmt.OmpParallelDoSimd
	case s.Keyword("parallel do") == scan.Yes:
		op = stmt.OmpParallelDo
	case s.Keyword("parallel sections") == scan.Yes:
		op = stmt.OmpParallelSections
	case s.Keyword("parallel workshare") == scan.Yes:
		op = stmt.OmpParallelWorkshare
	case s.Keyword("parallel") == scan.Yes:
		op = stmt.OmpParallel
	case s.Keyword("do simd") == scan.Yes:
		op, allowNowait = stmt.OmpDoSimd, true
	case s.Keyword("do") == scan.Yes:
		op, allowNowait = stmt.OmpDo, true
	case s.Keyword("simd") == scan.Yes:
		op = stmt.OmpSimd
	case s.Keyword("sections") == scan.Yes:
		op, allowNowait = stmt.OmpSections, true
	case s.Keyword("single") == scan.Yes:
		return p.endSingle(loc)
	case s.Keyword("workshare") == scan.Yes:
		op, allowNowait = stmt.OmpWorkshare, true
	case s.Keyword("taskgroup") == scan.Yes:
		op = stmt.OmpTaskgroup
	case s.Keyword("task") == scan.Yes:
		op = stmt.OmpTask
	case s.Keyword("master") == scan.Yes:
		op = stmt.OmpMaster
	case s.Keyword("ordered") == scan.Yes:
		op = stmt.OmpOrdered
	case s.Keyword("atomic") == scan.Yes:
		op = stmt.OmpAtomic
	case s.Keyword("critical") == scan.Yes:
		n := stmt.NewNode(stmt.OmpCritical, loc)
		n.End = true
		if s.MatchChar('(') == scan.Yes {
			name, m := s.Name()
			if m != scan.Yes || s.MatchChar(')') != scan.Yes {
				return nil, scan.Error
			}
			n.Name = name
		}
		if s.EOS() != scan.Yes {
			return nil, scan.Error
		}
		return n, scan.Yes
	default:
		p.Diag.Errorf(loc, "Unclassifiable OpenMP end directive")
		return nil, scan.Error
	}
	n := stmt.NewNode(op, loc)
	n.End = true
	if allowNowait && s.Literal(" nowait") == scan.Yes {
		n.Nowait = true
	}
	if s.EOS() != scan.Yes {
		p.Diag.Errorf(s.Locus(), "Unexpected junk after %s end statement", op)
		return nil, scan.Error
	}
	return n, scan.Yes
}

// endSingle matches "end single", which alone among end markers takes
// a clause: copyprivate, or a bare nowait.
func (p *Parser) endSingle(loc scan.Locus) (*stmt.Node, scan.Match) {
	s := p.S
	n := stmt.NewNode(stmt.OmpSingle, loc)
	n.End = true
	if s.Literal(" nowait") == scan.Yes {
		n.Nowait = true
		if s.EOS() != scan.Yes {
			return nil, scan.Error
		}
		return n, scan.Yes
	}
	c, m := p.matchClauses(ClauseCopyprivate, true, true)
	if m != scan.Yes {
		return nil, scan.Error
	}
	n.Clauses = c
	return n, scan.Yes
}
