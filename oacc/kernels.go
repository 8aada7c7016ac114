// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package oacc decomposes accelerator kernels regions into sequences
// of parallel regions. Each top-level loop nest in a kernels region
// becomes its own parallel region that later analysis may parallelize;
// the sequential statements between loops are grouped into parallel
// regions forced to a single gang. The whole sequence is wrapped in a
// data region carrying the original region's data motion clauses so
// that each new region finds its data already present on the device.
package oacc

import (
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/log"
	"github.com/grailbio/directive/stmt"
	"github.com/grailbio/directive/syms"
)

// dataEndFn is the runtime entry point that closes a data region. The
// decomposer arranges for it to run on every exit path.
const dataEndFn = "GOACC_data_end"

// A Pass rewrites kernels regions in a statement tree. A Pass may be
// reused across trees; it is not safe for concurrent use.
type Pass struct {
	// Config controls clause hoisting.
	Config Config

	Log *log.Logger

	// Instantiation tells the pass that the surrounding procedure is a
	// generic instantiation. Locals promoted out of inner scopes are
	// then kept lexically local instead of being mapped, since the body
	// lacks the copies to temporaries that would make mapping legal.
	Instantiation bool

	exclude map[stmt.MapKind]bool
}

// Transform replaces every kernels region reachable from nodes with
// its decomposed form, rewriting the tree in place.
func (p *Pass) Transform(nodes []*stmt.Node) error {
	if p.exclude == nil {
		m, err := p.Config.exclusions()
		if err != nil {
			return err
		}
		p.exclude = m
	}
	p.walk(nodes)
	return nil
}

func (p *Pass) walk(nodes []*stmt.Node) {
	for i, n := range nodes {
		if n.Op == stmt.AccRegion && n.Region == stmt.RegionKernels {
			nodes[i] = p.transformRegion(n)
			continue
		}
		p.walk(n.Body)
		p.walk(n.Cleanup)
	}
}

// transformRegion turns one kernels region into a data region holding
// the region's body cut up into a sequence of parallel regions.
func (p *Pass) transformRegion(region *stmt.Node) *stmt.Node {
	loc := region.Loc
	kernelsClauses := region.Acc

	// Hoist data clauses to the enclosing data region. Any non-data
	// clause remains on the inner regions.
	var dataClauses []*stmt.Clause
	for _, c := range kernelsClauses {
		switch c.Code {
		case stmt.ClauseMap:
			if p.exclude[c.Map] {
				break
			}
			if c.Map == stmt.MapAlloc && zeroSize(c.Size) {
				// An alloc clause mapping a pointer whose target is
				// already mapped. Hoisting these causes runtime errors,
				// so they stay on the inner regions.
				break
			}
			// Hoist clauses on ordinary variables and on section
			// expressions like a(1:n). Once the data region maps the
			// data, the inner copy only needs to assert presence.
			if c.Expr != nil || (c.Sym != nil && !c.Sym.Attr.Artificial) {
				dataClauses = append(dataClauses, c.Copy())
				c.Map = stmt.MapForcePresent
			}
		case stmt.ClauseIf:
			// The condition must also guard the data region.
			dataClauses = append(dataClauses, c.Copy())
		}
	}

	body := p.decomposeBody(region, kernelsClauses)

	data := stmt.NewNode(stmt.AccRegion, loc)
	data.Region = stmt.RegionData
	data.Acc = dataClauses
	data.Body = []*stmt.Node{dataRegionTry(loc, body)}
	p.Log.Debugf("oacc: decomposed kernels region at %s", loc)
	return data
}

// decomposeBody cuts the body of region into gang-single and
// parallelized loop regions, then wraps the sequence in a data region
// for any locals promoted out of inner scopes.
func (p *Pass) decomposeBody(region *stmt.Node, kernelsClauses []*stmt.Clause) *stmt.Node {
	loc := region.Loc

	// The kernels clauses propagate to the child regions unmodified,
	// except that num_gangs only applies to loop regions; gang-single
	// regions get an explicit num_gangs(1) instead. Cut it out here.
	var numGangs *stmt.Clause
	for i, c := range kernelsClauses {
		if c.Code == stmt.ClauseNumGangs {
			numGangs = c
			kernelsClauses = append(kernelsClauses[:i:i], kernelsClauses[i+1:]...)
			break
		}
	}

	bind := regionBind(region)

	// Collapse nested binds into one so there is a single statement
	// sequence to iterate over, collecting the inner locals.
	innerVars := p.flattenBinds(bind, false)
	bodySeq := bind.Body

	// The inner locals get allocated on the device below. Each new
	// region asserts their presence.
	for _, v := range innerVars {
		if !v.Attr.Artificial && v.Attr.Flavor != syms.FlavorParameter {
			pc := &stmt.Clause{
				Loc:  loc,
				Code: stmt.ClauseMap,
				Map:  stmt.MapForcePresent,
				Sym:  v,
				Size: expr.NewInt(v.Size),
			}
			kernelsClauses = append([]*stmt.Clause{pc}, kernelsClauses...)
		}
	}

	// The real body may sit inside a try whose cleanup clobbers the
	// promoted locals. Peel it off and reattach the cleanup around the
	// inner data region below.
	var innerCleanup []*stmt.Node
	if len(bodySeq) > 0 && bodySeq[0].Op == stmt.Try {
		try := bodySeq[0]
		innerCleanup = try.Cleanup
		if len(bodySeq) == 1 {
			bodySeq = try.Body
		} else {
			seq := append([]*stmt.Node{}, try.Body...)
			bodySeq = append(seq, bodySeq[1:]...)
		}
	}

	// regionBody collects the new regions; pending collects consecutive
	// sequential statements for the next gang-single region.
	var regionBody, pending []*stmt.Node
	// onlySimple records whether pending holds nothing but copies to
	// artificial locals. Such copies are loop setup code that must not
	// be separated from the loop.
	onlySimple := true
	for _, st := range bodySeq {
		loop := topLevelLoopIn(st)
		if loop == nil {
			pending = append(pending, st)
			if !simpleAssignment(st) {
				onlySimple = false
			}
			continue
		}
		if len(pending) > 0 && !onlySimple {
			regionBody = append(regionBody, p.gangSingleRegion(loc, pending, kernelsClauses))
		} else if len(pending) > 0 {
			// The statements preceding this loop are all simple
			// assignments, probably code copying the loop limits to
			// temporaries. Keep them together with the loop.
			seq := append(pending, st)
			st = &stmt.Node{Op: stmt.Bind, Loc: st.Loc, Body: seq}
		}
		pending = nil
		onlySimple = true
		regionBody = append(regionBody, p.gangLoopRegion(loop, st, numGangs, kernelsClauses))
	}

	// An empty region still produces one region so the construct
	// survives for later processing.
	if regionBody == nil && pending == nil {
		pending = []*stmt.Node{stmt.NewNode(stmt.Nop, loc)}
	}
	if pending != nil {
		regionBody = append(regionBody, p.gangSingleRegion(loc, pending, kernelsClauses))
	}

	body := &stmt.Node{Op: stmt.Bind, Loc: loc, Vars: bind.Vars, Body: regionBody}
	return p.maybeInnerDataRegion(loc, body, innerVars, innerCleanup)
}

// regionBind returns the bind holding the region's body, synthesizing
// one when the body is a bare statement sequence.
func regionBind(region *stmt.Node) *stmt.Node {
	if len(region.Body) == 1 && region.Body[0].Op == stmt.Bind {
		return region.Body[0]
	}
	return &stmt.Node{Op: stmt.Bind, Loc: region.Loc, Body: region.Body}
}

// simpleAssignment tells whether st assigns to a whole artificial
// local, the shape of loop setup code.
func simpleAssignment(st *stmt.Node) bool {
	return st.Op == stmt.Assign && st.Lhs != nil &&
		st.Lhs.Kind == expr.Variable && len(st.Lhs.Refs) == 0 &&
		st.Lhs.Sym != nil && st.Lhs.Sym.Attr.Artificial
}

// topLevelLoopIn returns the accelerator loop st amounts to, or nil.
// It accepts a bare loop; a loop wrapped in a singleton bind, possibly
// through a singleton try, to allow for a local loop variable; and a
// bind of assignments with the loop at the very end. Loops nested in
// any other construct do not qualify.
func topLevelLoopIn(st *stmt.Node) *stmt.Node {
	if st.Op == stmt.AccLoop {
		return st
	}
	if st.Op != stmt.Bind {
		return nil
	}
	if len(st.Body) == 1 {
		first := st.Body[0]
		if first.Op == stmt.AccLoop {
			return first
		}
		if first.Op == stmt.Try && len(first.Body) == 1 && first.Body[0].Op == stmt.AccLoop {
			return first.Body[0]
		}
		return nil
	}
	for i, bs := range st.Body {
		switch {
		case bs.Op == stmt.Assign:
		case bs.Op == stmt.AccLoop && i == len(st.Body)-1:
			return bs
		default:
			return nil
		}
	}
	return nil
}

// flattenBinds eliminates binds directly inside bind by splicing their
// statements into bind itself, except binds that hold only a loop and
// its setup code. It recurses into spliced binds and returns their
// local variables; when includeTop is set the result also includes
// bind's own variables.
func (p *Pass) flattenBinds(bind *stmt.Node, includeTop bool) []*syms.Symbol {
	var vars []*syms.Symbol
	if includeTop {
		vars = bind.Vars
	}
	var newBody []*stmt.Node
	for _, st := range bind.Body {
		if st.Op == stmt.Bind && topLevelLoopIn(st) == nil {
			innerVars := p.flattenBinds(st, true)
			newBody = append(newBody, st.Body...)
			vars = append(vars, innerVars...)
		} else {
			newBody = append(newBody, st)
		}
	}
	bind.Body = newBody
	return vars
}

// gangSingleRegion wraps stmts in a parallel region forced to a single
// gang: the region carries an unshared copy of clauses with
// num_gangs(1) prepended.
func (p *Pass) gangSingleRegion(loc scan.Locus, stmts []*stmt.Node, clauses []*stmt.Clause) *stmt.Node {
	cs := stmt.UnshareClauses(clauses)
	ng := &stmt.Clause{Loc: loc, Code: stmt.ClauseNumGangs, Expr: expr.NewInt(1)}
	cs = append([]*stmt.Clause{ng}, cs...)

	region := stmt.NewNode(stmt.AccRegion, loc)
	region.Region = stmt.RegionGangSingle
	region.Acc = cs
	region.Body = []*stmt.Node{{Op: stmt.Bind, Loc: loc, Body: stmts}}
	return region
}

// transformLoopClauses adapts the clauses of a loop that leaves a
// kernels region for a parallel region. A loop without an explicit
// independent, seq, or auto clause gets an explicit auto clause, and
// the kernels region's num_gangs clause, if any, moves onto the new
// region's clause chain.
func transformLoopClauses(loop *stmt.Node, numGangs *stmt.Clause, clauses []*stmt.Clause) []*stmt.Clause {
	addAuto := true
	for _, c := range loop.Acc {
		if c.Code == stmt.ClauseAuto || c.Code == stmt.ClauseIndependent || c.Code == stmt.ClauseSeq {
			addAuto = false
			break
		}
	}
	if addAuto {
		auto := &stmt.Clause{Loc: loop.Loc, Code: stmt.ClauseAuto}
		loop.Acc = append([]*stmt.Clause{auto}, loop.Acc...)
	}
	if numGangs != nil {
		clauses = append([]*stmt.Clause{numGangs.Copy()}, clauses...)
	}
	return clauses
}

// gangLoopRegion wraps st, which is loop or a bind containing it, in a
// parallel region eligible for gang parallelization.
func (p *Pass) gangLoopRegion(loop, st *stmt.Node, numGangs *stmt.Clause, clauses []*stmt.Clause) *stmt.Node {
	cs := stmt.UnshareClauses(clauses)
	cs = transformLoopClauses(loop, numGangs, cs)

	region := stmt.NewNode(stmt.AccRegion, st.Loc)
	region.Region = stmt.RegionParallelized
	region.Acc = cs
	region.Body = []*stmt.Node{{Op: stmt.Bind, Loc: st.Loc, Body: []*stmt.Node{st}}}
	return region
}

// maybeInnerDataRegion wraps body in a data region creating the
// promoted locals on the device. Artificial temporaries, named
// constants, and all locals in an instantiation context need no
// mapping; their declarations move into the bind inside the data
// region instead. Without any variables to map, body is returned
// unchanged.
func (p *Pass) maybeInnerDataRegion(loc scan.Locus, body *stmt.Node, innerVars []*syms.Symbol, innerCleanup []*stmt.Node) *stmt.Node {
	var mapped, local []*syms.Symbol
	var createClauses []*stmt.Clause
	for _, v := range innerVars {
		if v.Attr.Artificial || v.Attr.Flavor == syms.FlavorParameter || p.Instantiation {
			local = append(local, v)
			continue
		}
		c := &stmt.Clause{
			Loc:  loc,
			Code: stmt.ClauseMap,
			Map:  stmt.MapAlloc,
			Sym:  v,
			Size: expr.NewInt(v.Size),
		}
		createClauses = append([]*stmt.Clause{c}, createClauses...)
		mapped = append(mapped, v)
	}

	if local != nil {
		body = &stmt.Node{Op: stmt.Bind, Loc: loc, Vars: local, Body: []*stmt.Node{body}}
	}
	if createClauses == nil {
		return body
	}

	data := stmt.NewNode(stmt.AccRegion, loc)
	data.Region = stmt.RegionData
	data.Acc = createClauses
	data.Body = []*stmt.Node{dataRegionTry(loc, body)}

	inner := data
	if innerCleanup != nil {
		// Clobber the promoted locals on the way out.
		inner = &stmt.Node{Op: stmt.Try, Loc: loc, Body: []*stmt.Node{data}, Cleanup: innerCleanup}
	}
	return &stmt.Node{Op: stmt.Bind, Loc: loc, Vars: mapped, Body: []*stmt.Node{inner}}
}

// dataRegionTry wraps body in a try statement that closes the data
// region in its cleanup block.
func dataRegionTry(loc scan.Locus, body *stmt.Node) *stmt.Node {
	call := stmt.NewNode(stmt.Call, loc)
	call.FnName = dataEndFn
	try := stmt.NewNode(stmt.Try, loc)
	try.Body = []*stmt.Node{body}
	try.Cleanup = []*stmt.Node{call}
	return try
}

// zeroSize tells whether a map clause's extent is the constant zero.
func zeroSize(size *expr.Expr) bool {
	if size == nil {
		return false
	}
	v, ok := size.ConstInt()
	return ok && v == 0
}
