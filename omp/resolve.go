// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package omp

import (
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/directive/clause"
	"github.com/grailbio/directive/diag"
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/log"
	"github.com/grailbio/directive/stmt"
	"github.com/grailbio/directive/syms"
)

// A Resolver validates directive statements after parsing. It owns the
// nested-construct context of one compilation unit; independent units
// use independent Resolvers.
type Resolver struct {
	Diag *diag.Reporter
	Log  *log.Logger

	ctx        *context
	doCode     *stmt.Node
	doCollapse int
}

// context is one level of the nested-construct stack: the enclosing
// data-sharing construct, the symbols its clauses name, and the loop
// iteration variables already privatized on it.
type context struct {
	node      *stmt.Node
	sharing   map[*syms.Symbol]bool
	iterators map[*syms.Symbol]bool
	outer     *context
}

// State is a resolver's suspended construct context. Save clears the
// resolver so an unrelated unit can be resolved mid-pass; Restore
// resumes.
type State struct {
	ctx        *context
	doCode     *stmt.Node
	doCollapse int
}

// Save captures and clears the construct context.
func (r *Resolver) Save() State {
	s := State{r.ctx, r.doCode, r.doCollapse}
	r.ctx, r.doCode, r.doCollapse = nil, nil, 0
	return s
}

// Restore resumes a previously saved construct context.
func (r *Resolver) Restore(s State) {
	r.ctx, r.doCode, r.doCollapse = s.ctx, s.doCode, s.doCollapse
}

// ResolveDoBlocks resolves the body of a looping directive. While
// inner runs, the resolver knows which loops of the collapse nest
// belong to the directive, so their iteration variables are not
// propagated to enclosing parallel constructs.
func (r *Resolver) ResolveDoBlocks(n *stmt.Node, inner func()) {
	d := n.InnerDo()
	if d == nil {
		inner()
		return
	}
	r.doCode = d
	r.doCollapse = 0
	if n.Clauses != nil {
		r.doCollapse = n.Clauses.Collapse
	}
	c := d
	i := 1
	for ; i < r.doCollapse; i++ {
		if len(c.Body) != 1 || c.Body[0].Op != stmt.Do {
			break
		}
		c = c.Body[0]
	}
	if i < r.doCollapse || r.doCollapse <= 0 {
		r.doCollapse = 1
	}
	inner()
	r.doCode, r.doCollapse = nil, 0
}

// ResolveParallelBlocks resolves the body of a data-sharing construct,
// pushing a context level for the duration of inner.
func (r *Resolver) ResolveParallelBlocks(n *stmt.Node, inner func()) {
	ctx := &context{
		node:      n,
		sharing:   make(map[*syms.Symbol]bool),
		iterators: make(map[*syms.Symbol]bool),
		outer:     r.ctx,
	}
	r.ctx = ctx
	if n.Clauses != nil {
		for l := clause.List(0); l < clause.NumLists; l++ {
			for _, it := range n.Clauses.Lists[l] {
				ctx.sharing[it.Sym] = true
			}
		}
	}
	switch n.Op {
	case stmt.OmpParallelDo, stmt.OmpParallelDoSimd:
		r.ResolveDoBlocks(n, inner)
	default:
		inner()
	}
	r.ctx = ctx.outer
}

// ResolveDoIterator records that loop iterates over sym. Iteration
// variables of loops belonging to the current looping directive are
// predetermined private there; any other loop variable inside a
// data-sharing construct is privatized on that construct unless a
// clause already names it.
func (r *Resolver) ResolveDoIterator(loop *stmt.Node, sym *syms.Symbol) {
	if r.ctx == nil {
		return
	}
	if sym.Attr.Threadprivate {
		return
	}
	c := r.doCode
	for i := r.doCollapse; i >= 1; i-- {
		if loop == c {
			return
		}
		if c != nil && len(c.Body) == 1 {
			c = c.Body[0]
		} else {
			c = nil
		}
	}
	if r.ctx.sharing[sym] {
		return
	}
	if r.ctx.iterators[sym] {
		return
	}
	r.ctx.iterators[sym] = true
	if r.ctx.node.Clauses == nil {
		r.ctx.node.Clauses = new(clause.Set)
	}
	r.ctx.node.Clauses.Append(clause.ListPrivate, sym)
	r.Log.Debugf("%s: iteration variable %s privatized on %s", loop.Loc, sym.Name, r.ctx.node.Op)
}

// ResolveTree walks a statement tree, resolving every directive it
// contains against ns.
func (r *Resolver) ResolveTree(nodes []*stmt.Node, ns *syms.Namespace) {
	for _, n := range nodes {
		switch n.Op {
		case stmt.OmpParallel, stmt.OmpParallelDo, stmt.OmpParallelDoSimd,
			stmt.OmpParallelSections, stmt.OmpParallelWorkshare, stmt.OmpTask:
			r.ResolveParallelBlocks(n, func() { r.ResolveTree(n.Body, ns) })
			r.Resolve(n, ns)
		case stmt.OmpDo, stmt.OmpDoSimd, stmt.OmpSimd:
			r.ResolveDoBlocks(n, func() { r.ResolveTree(n.Body, ns) })
			r.Resolve(n, ns)
		case stmt.Do, stmt.DoConcurrent:
			if n.Iter != nil {
				r.ResolveDoIterator(n, n.Iter.Var)
			}
			r.ResolveTree(n.Body, ns)
		case stmt.Try:
			r.ResolveTree(n.Body, ns)
			r.ResolveTree(n.Cleanup, ns)
		default:
			r.ResolveTree(n.Body, ns)
			if n.Op.OmpDirective() {
				r.Resolve(n, ns)
			}
		}
	}
}

// Resolve validates one directive statement.
func (r *Resolver) Resolve(n *stmt.Node, ns *syms.Namespace) {
	switch n.Op {
	case stmt.OmpDo, stmt.OmpDoSimd, stmt.OmpParallelDo, stmt.OmpParallelDoSimd, stmt.OmpSimd:
		r.resolveDo(n, ns)
	case stmt.OmpAtomic:
		r.resolveAtomic(n)
	case stmt.OmpParallel, stmt.OmpParallelSections, stmt.OmpParallelWorkshare,
		stmt.OmpSections, stmt.OmpSingle, stmt.OmpTask, stmt.OmpWorkshare,
		stmt.OmpCancel, stmt.OmpCancellationPoint, stmt.OmpFlush:
		if n.Clauses != nil {
			r.resolveClauses(n, n.Clauses, ns, n.Loc)
		}
	}
}

// ResolveDeclareSimd validates the declare simd records of a scope.
// Records must refer to the scope's own procedure; their clause sets
// validate in interface-only mode.
func (r *Resolver) ResolveDeclareSimd(ns *syms.Namespace, records *clause.DeclareSimd) {
	for ods := records; ods != nil; ods = ods.Next {
		if ods.Proc != ns.ProcName {
			name := "?"
			if ns.ProcName != nil {
				name = ns.ProcName.Name
			}
			r.Diag.Errorf(ods.Where, "!$OMP DECLARE SIMD should refer to containing procedure %s", name)
			continue
		}
		if ods.Clauses != nil {
			r.resolveClauses(nil, ods.Clauses, ns, ods.Where)
		}
	}
}

// scalarOf tells whether e resolved to a scalar of basic type b.
func scalarOf(e *expr.Expr, b syms.BasicType) bool {
	return e.Resolve() && e.TS.Basic == b && e.Rank == 0
}

// resolveClauses cross-validates a populated clause set. code is nil
// in interface-only (declare simd) contexts, where list entries must
// additionally be dummy arguments of the procedure. All violations
// accumulate; validation never stops early.
func (r *Resolver) resolveClauses(code *stmt.Node, c *clause.Set, ns *syms.Namespace, where scan.Locus) {
	if c == nil {
		return
	}
	if c.If != nil && !scalarOf(c.If, syms.Logical) {
		r.Diag.Errorf(where, "IF clause requires a scalar LOGICAL expression")
	}
	if c.Final != nil && !scalarOf(c.Final, syms.Logical) {
		r.Diag.Errorf(where, "FINAL clause requires a scalar LOGICAL expression")
	}
	if c.NumThreads != nil && !scalarOf(c.NumThreads, syms.Integer) {
		r.Diag.Errorf(where, "NUM_THREADS clause requires a scalar INTEGER expression")
	}
	if c.ChunkSize != nil && !scalarOf(c.ChunkSize, syms.Integer) {
		r.Diag.Errorf(where, "SCHEDULE clause chunk_size requires a scalar INTEGER expression")
	}
	if c.Safelen != nil && !scalarOf(c.Safelen, syms.Integer) {
		r.Diag.Errorf(where, "SAFELEN clause requires a scalar INTEGER expression")
	}
	if c.Simdlen != nil && !scalarOf(c.Simdlen, syms.Integer) {
		r.Diag.Errorf(where, "SIMDLEN clause requires a scalar INTEGER expression")
	}

	// Symbol-category pass: every listed symbol must be a variable, a
	// procedure pointer, or the enclosing function's result.
	for l := clause.List(0); l < clause.NumLists; l++ {
		for _, it := range c.Lists[l] {
			sym := it.Sym
			if sym.Attr.Flavor == syms.FlavorVariable || sym.Attr.ProcPointer {
				if code == nil && (!sym.Attr.Dummy || sym.NS != ns) {
					r.Diag.Errorf(where, "Variable %s is not a dummy argument", sym.Name)
				}
				continue
			}
			if sym.Attr.Flavor == syms.FlavorProcedure && sym.ResultSym == sym && sym.Attr.Function {
				if ns.ProcName == sym ||
					(ns.Parent != nil && ns.Parent.ProcName == sym) {
					continue
				}
				if entrySym(ns, sym) ||
					(ns.Parent != nil && entrySym(ns.Parent, sym)) {
					continue
				}
			}
			r.Diag.Errorf(where, "Object %s is not a variable", sym.Name)
		}
	}

	// Duplicate detection. Firstprivate and lastprivate may pair on the
	// same symbol; aligned and depend track on their own passes.
	mark := make(map[*syms.Symbol]bool)
	for l := clause.List(0); l < clause.NumLists; l++ {
		switch l {
		case clause.ListFirstprivate, clause.ListLastprivate, clause.ListAligned,
			clause.ListDependIn, clause.ListDependOut:
			continue
		}
		for _, it := range c.Lists[l] {
			if mark[it.Sym] {
				r.Diag.Errorf(where, "Symbol %s present on multiple clauses", it.Sym.Name)
			} else {
				mark[it.Sym] = true
			}
		}
	}
	for _, l := range []clause.List{clause.ListFirstprivate, clause.ListLastprivate} {
		for _, it := range c.Lists[l] {
			if mark[it.Sym] {
				r.Diag.Errorf(where, "Symbol %s present on multiple clauses", it.Sym.Name)
				delete(mark, it.Sym)
			}
		}
	}
	for _, it := range c.Lists[clause.ListFirstprivate] {
		if mark[it.Sym] {
			r.Diag.Errorf(where, "Symbol %s present on multiple clauses", it.Sym.Name)
		} else {
			mark[it.Sym] = true
		}
	}
	// A symbol may pair across the two lists; only duplicates within
	// each list diagnose.
	for _, it := range c.Lists[clause.ListLastprivate] {
		delete(mark, it.Sym)
	}
	for _, it := range c.Lists[clause.ListLastprivate] {
		if mark[it.Sym] {
			r.Diag.Errorf(where, "Symbol %s present on multiple clauses", it.Sym.Name)
		} else {
			mark[it.Sym] = true
		}
	}
	amark := make(map[*syms.Symbol]bool)
	for _, it := range c.Lists[clause.ListAligned] {
		if amark[it.Sym] {
			r.Diag.Errorf(where, "Symbol %s present on multiple clauses", it.Sym.Name)
		} else {
			amark[it.Sym] = true
		}
	}

	// Per-list semantic rules.
	for l := clause.List(0); l < clause.NumLists; l++ {
		items := c.Lists[l]
		if len(items) == 0 {
			continue
		}
		name := l.Name()
		switch l {
		case clause.ListCopyin:
			for _, it := range items {
				if !it.Sym.Attr.Threadprivate {
					r.Diag.Errorf(where, "Non-THREADPRIVATE object %s in COPYIN clause", it.Sym.Name)
				}
				if allocComp(it.Sym) {
					r.Diag.Errorf(where, "COPYIN clause object %s has ALLOCATABLE components", it.Sym.Name)
				}
			}
		case clause.ListCopyprivate:
			for _, it := range items {
				if assumedSize(it.Sym) {
					r.Diag.Errorf(where, "Assumed size array %s in COPYPRIVATE clause", it.Sym.Name)
				}
				if allocComp(it.Sym) {
					r.Diag.Errorf(where, "COPYPRIVATE clause object %s has ALLOCATABLE components", it.Sym.Name)
				}
			}
		case clause.ListShared:
			for _, it := range items {
				if it.Sym.Attr.Threadprivate {
					r.Diag.Errorf(where, "THREADPRIVATE object %s in SHARED clause", it.Sym.Name)
				}
				if it.Sym.Attr.CrayPointee {
					r.Diag.Errorf(where, "Cray pointee %s in SHARED clause", it.Sym.Name)
				}
			}
		case clause.ListAligned:
			for _, it := range items {
				sym := it.Sym
				cptr := sym.TS.Basic == syms.DerivedType && sym.TS.Derived != nil &&
					sym.TS.Derived.CPtrInterop
				if !sym.Attr.Pointer && !sym.Attr.Allocatable && !sym.Attr.CrayPointer && !cptr {
					r.Diag.Errorf(where, "%s in ALIGNED clause must be POINTER, ALLOCATABLE, Cray pointer or C_PTR", sym.Name)
				} else if it.Expr != nil {
					v, ok := int64(0), false
					if it.Expr.Resolve() && it.Expr.TS.Basic == syms.Integer && it.Expr.Rank == 0 {
						v, ok = it.Expr.ConstInt()
					}
					if !ok || v <= 0 {
						r.Diag.Errorf(where, "%s in ALIGNED clause requires a scalar positive constant alignment", sym.Name)
					}
				}
			}
		case clause.ListDependIn, clause.ListDependOut:
			for _, it := range items {
				r.resolveDepend(it, where)
			}
		default:
			for _, it := range items {
				sym := it.Sym
				if sym.Attr.Threadprivate {
					r.Diag.Errorf(where, "THREADPRIVATE object %s in %s clause", sym.Name, name)
				}
				if sym.Attr.CrayPointee {
					r.Diag.Errorf(where, "Cray pointee %s in %s clause", sym.Name, name)
				}
				if assumedSize(sym) {
					r.Diag.Errorf(where, "Assumed size array %s in %s clause", sym.Name, name)
				}
				if sym.Attr.InNamelist && !l.Reduction() {
					r.Diag.Errorf(where, "Variable %s in %s clause is used in NAMELIST statement", sym.Name, name)
				}
				if l.Reduction() {
					if sym.Attr.Pointer {
						r.Diag.Errorf(where, "POINTER object %s in %s clause", sym.Name, name)
					}
					if allocComp(sym) {
						r.Diag.Errorf(where, "%s clause object %s has ALLOCATABLE components", name, sym.Name)
					}
					if sym.Attr.CrayPointer {
						r.Diag.Errorf(where, "Cray pointer %s in %s clause", sym.Name, name)
					}
					r.resolveReductionType(l, sym, where)
				}
				if l == clause.ListLinear {
					if sym.TS.Basic != syms.Integer {
						r.Diag.Errorf(where, "LINEAR variable %s must be INTEGER", sym.Name)
					} else if code == nil && !sym.Attr.Value {
						r.Diag.Errorf(where, "LINEAR dummy argument %s must have VALUE attribute", sym.Name)
					} else if it.Expr != nil {
						e := it.Expr
						if !e.Resolve() || e.TS.Basic != syms.Integer || e.Rank != 0 {
							r.Diag.Errorf(where, "%s in LINEAR clause requires a scalar integer linear-step expression", sym.Name)
						} else if code == nil && e.Kind != expr.Constant {
							r.Diag.Errorf(where, "%s in LINEAR clause requires a constant integer linear-step expression", sym.Name)
						}
					}
				}
			}
		}
	}
}

func entrySym(ns *syms.Namespace, sym *syms.Symbol) bool {
	if ns.ProcName == nil || !ns.EntryMaster {
		return false
	}
	for _, e := range ns.Entries {
		if e == sym {
			return true
		}
	}
	return false
}

func allocComp(sym *syms.Symbol) bool {
	return sym.TS.Basic == syms.DerivedType && sym.TS.Derived != nil &&
		sym.TS.Derived.AllocComp
}

func assumedSize(sym *syms.Symbol) bool {
	return sym.AS != nil && sym.AS.Type == syms.ArrayAssumedSize
}

// resolveDepend validates one depend list entry: a proper stride-free,
// coarray-free, provably nonempty array section.
func (r *Resolver) resolveDepend(it *clause.Item, where scan.Locus) {
	if it.Expr == nil {
		return
	}
	e := it.Expr
	if !e.Resolve() || e.Kind != expr.Variable || len(e.Refs) != 1 ||
		e.Refs[0].Kind != expr.RefArray {
		r.Diag.Errorf(where, "%s in DEPEND clause is not a proper array section", it.Sym.Name)
		return
	}
	if e.Refs[0].Codimen > 0 {
		r.Diag.Errorf(where, "Coarrays not supported in DEPEND clause")
		return
	}
	for _, d := range e.Refs[0].Dims {
		if d.Stride != nil {
			r.Diag.Errorf(where, "Stride should not be specified for array section in DEPEND clause")
			return
		}
		if d.Type != expr.DimenElement && d.Type != expr.DimenRange {
			r.Diag.Errorf(where, "%s in DEPEND clause is not a proper array section", it.Sym.Name)
			return
		}
		if start, ok := d.Start.ConstInt(); ok {
			if end, ok := d.End.ConstInt(); ok && start > end {
				r.Diag.Errorf(where, "%s in DEPEND clause is a zero size array section", it.Sym.Name)
				return
			}
		}
	}
}

// resolveReductionType checks the reduction variable's type against
// its operator.
func (r *Resolver) resolveReductionType(l clause.List, sym *syms.Symbol, where scan.Locus) {
	var opName string
	bad := false
	switch l {
	case clause.ListReductionPlus, clause.ListReductionTimes, clause.ListReductionMinus:
		opName = map[clause.List]string{
			clause.ListReductionPlus:  "+",
			clause.ListReductionTimes: "*",
			clause.ListReductionMinus: "-",
		}[l]
		bad = !sym.TS.Numeric()
	case clause.ListReductionAnd, clause.ListReductionOr,
		clause.ListReductionEqv, clause.ListReductionNeqv:
		opName = map[clause.List]string{
			clause.ListReductionAnd:  ".AND.",
			clause.ListReductionOr:   ".OR.",
			clause.ListReductionEqv:  ".EQV.",
			clause.ListReductionNeqv: ".NEQV.",
		}[l]
		bad = sym.TS.Basic != syms.Logical
	case clause.ListReductionMax, clause.ListReductionMin:
		opName = "MAX"
		if l == clause.ListReductionMin {
			opName = "MIN"
		}
		bad = sym.TS.Basic != syms.Integer && sym.TS.Basic != syms.Real
	case clause.ListReductionIand, clause.ListReductionIor, clause.ListReductionIeor:
		opName = map[clause.List]string{
			clause.ListReductionIand: "IAND",
			clause.ListReductionIor:  "IOR",
			clause.ListReductionIeor: "IEOR",
		}[l]
		bad = sym.TS.Basic != syms.Integer
	}
	if bad {
		r.Diag.Errorf(where, "%s REDUCTION variable %s is %s", opName, sym.Name, sym.TS)
	}
}

// resolveDo validates a looping directive: its clause set, then the
// collapse-depth loop nest under it.
func (r *Resolver) resolveDo(code *stmt.Node, ns *syms.Namespace) {
	name := code.Op.String()
	isSimd := code.Op == stmt.OmpSimd || code.Op == stmt.OmpDoSimd ||
		code.Op == stmt.OmpParallelDoSimd
	if code.Clauses != nil {
		r.resolveClauses(code, code.Clauses, ns, code.Loc)
	}
	if len(code.Body) == 0 {
		return
	}
	doCode := code.Body[0]
	collapse := 0
	if code.Clauses != nil {
		collapse = code.Clauses.Collapse
	}
	if collapse <= 0 {
		collapse = 1
	}
	for i := 1; i <= collapse; i++ {
		if doCode.Op == stmt.DoWhile {
			r.Diag.Errorf(doCode.Loc, "%s cannot be a DO WHILE or DO without loop control", name)
			break
		}
		if doCode.Op == stmt.DoConcurrent {
			r.Diag.Errorf(doCode.Loc, "%s cannot be a DO CONCURRENT loop", name)
			break
		}
		if doCode.Op != stmt.Do || doCode.Iter == nil {
			panic("omp: loop directive over a non-loop statement")
		}
		dovar := doCode.Iter.Var
		if dovar.TS.Basic != syms.Integer {
			r.Diag.Errorf(doCode.Loc, "%s iteration variable must be of type integer", name)
		}
		if dovar.Attr.Threadprivate {
			r.Diag.Errorf(doCode.Loc, "%s iteration variable must not be THREADPRIVATE", name)
		}
		if code.Clauses != nil {
			for l := clause.List(0); l < clause.NumLists; l++ {
				if l == clause.ListPrivate || l == clause.ListLastprivate {
					continue
				}
				if isSimd && l == clause.ListLinear {
					continue
				}
				for _, it := range code.Clauses.Lists[l] {
					if it.Sym == dovar {
						r.Diag.Errorf(doCode.Loc, "%s iteration variable present on clause other than PRIVATE or LASTPRIVATE", name)
						break
					}
				}
			}
		}
		if i > 1 {
			doCode2 := code.Body[0]
			for j := 1; j < i; j++ {
				ivar := doCode2.Iter.Var
				if dovar == ivar ||
					expr.ReferencesSym(doCode.Iter.Start, ivar, nil) ||
					expr.ReferencesSym(doCode.Iter.End, ivar, nil) ||
					expr.ReferencesSym(doCode.Iter.Step, ivar, nil) {
					r.Diag.Errorf(doCode.Loc, "%s collapsed loops don't form rectangular iteration space", name)
					break
				}
				doCode2 = doCode2.Body[0]
			}
		}
		if i == collapse {
			break
		}
		if len(doCode.Body) == 0 || doCode.Body[0].Op != stmt.Do {
			r.Diag.Errorf(code.Loc, "not enough DO loops for collapsed %s", name)
			break
		}
		if len(doCode.Body) > 1 {
			r.Diag.Errorf(code.Loc, "collapsed %s loops not perfectly nested", name)
			break
		}
		doCode = doCode.Body[0]
	}
}

// A Unit is one compilation unit's worth of parsed directive
// statements, with the namespace and declare simd records they were
// parsed against. Each unit carries its own Reporter so units can
// resolve concurrently.
type Unit struct {
	NS          *syms.Namespace
	Nodes       []*stmt.Node
	DeclareSimd *clause.DeclareSimd
	Diag        *diag.Reporter
}

// Resolve runs a fresh Resolver over the unit.
func (u *Unit) Resolve(lg *log.Logger) {
	r := &Resolver{Diag: u.Diag, Log: lg}
	r.ResolveTree(u.Nodes, u.NS)
	r.ResolveDeclareSimd(u.NS, u.DeclareSimd)
}

// ResolveUnits resolves independent compilation units in parallel.
// Each unit gets its own Resolver; diagnostics land on the unit's
// Reporter. The result is identical to resolving each unit serially.
func ResolveUnits(units []*Unit, lg *log.Logger) error {
	return traverse.Each(len(units), func(i int) error {
		units[i].Resolve(lg)
		return nil
	})
}
