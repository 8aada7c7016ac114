// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package omp

import (
	"github.com/grailbio/directive/clause"
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/stmt"
	"github.com/grailbio/directive/syms"
)

func isVarRef(e *expr.Expr, sym *syms.Symbol) bool {
	return e != nil && e.Kind == expr.Variable && e.Sym == sym
}

// trivialRhs tells whether e carries no operator and no reducible
// intrinsic: a constant, a plain reference, or a bare conversion.
func trivialRhs(e *expr.Expr) bool {
	switch e.Kind {
	case expr.Constant, expr.Variable:
		return true
	case expr.Call:
		return e.Fn == expr.IntrinsicConvert
	}
	return false
}

// resolveAtomic validates and canonicalizes the assignment statements
// of an atomic directive. The directive matcher guarantees the body
// shape (one assignment, or two for capture); violations of that shape
// are programming errors, not diagnostics.
func (r *Resolver) resolveAtomic(code *stmt.Node) {
	aop := code.AtomicOp & clause.AtomicMask
	if len(code.Body) == 0 || code.Body[0].Op != stmt.Assign {
		panic("omp: atomic directive without assignment")
	}
	if aop == clause.AtomicCapture {
		if len(code.Body) != 2 || code.Body[1].Op != stmt.Assign {
			panic("omp: atomic capture needs two assignments")
		}
	} else if len(code.Body) != 1 {
		panic("omp: atomic needs a single assignment")
	}
	st := code.Body[0]

	if st.Lhs.Kind != expr.Variable || st.Lhs.Sym == nil || st.Lhs.Rank != 0 ||
		!st.Lhs.TS.Intrinsic() {
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC statement must set a scalar variable of intrinsic type")
		return
	}
	varSym := st.Lhs.Sym

	// Strip one narrowing conversion wrapper; for read and write, a
	// widening one also qualifies.
	rhs := expr.Conversion(st.Rhs, false)
	stripped := rhs != nil
	if rhs == nil {
		if aop == clause.AtomicRead || aop == clause.AtomicWrite {
			rhs = expr.Conversion(st.Rhs, true)
		}
		if rhs == nil {
			rhs = st.Rhs
		}
	}

	switch aop {
	case clause.AtomicRead:
		if rhs.Kind != expr.Variable || rhs.Sym == nil || rhs.Rank != 0 ||
			!rhs.TS.Intrinsic() {
			r.Diag.Errorf(st.Loc, "!$OMP ATOMIC READ statement must read from a scalar variable of intrinsic type")
		}
		return
	case clause.AtomicWrite:
		if st.Rhs.Rank != 0 || expr.ReferencesSym(st.Rhs, varSym, nil) {
			r.Diag.Errorf(st.Loc, "expr in !$OMP ATOMIC WRITE assignment var = expr must be scalar and cannot reference var")
		}
		return
	}

	// Capture comes in two statement orders. When the first assignment
	// reads a plain variable, it is the capture; the update follows.
	captureFirst := false
	if aop == clause.AtomicCapture {
		tmp := rhs
		if rhs == st.Rhs {
			if t := expr.Conversion(st.Rhs, true); t != nil {
				tmp = t
			}
		}
		if tmp.Kind == expr.Variable {
			if tmp.Sym == nil || tmp.Rank != 0 || !tmp.TS.Intrinsic() || tmp.Sym == varSym {
				r.Diag.Errorf(st.Loc, "!$OMP ATOMIC CAPTURE capture statement must read from a scalar variable of intrinsic type")
				return
			}
			varSym = tmp.Sym
			captureFirst = true
			st = code.Body[1]
			if st.Lhs.Kind != expr.Variable || st.Lhs.Sym == nil || st.Lhs.Rank != 0 ||
				!st.Lhs.TS.Intrinsic() {
				r.Diag.Errorf(st.Loc, "!$OMP ATOMIC CAPTURE update statement must set a scalar variable of intrinsic type")
				return
			}
			if st.Lhs.Sym != varSym {
				r.Diag.Errorf(st.Loc, "!$OMP ATOMIC CAPTURE capture statement reads from different variable than update statement writes into")
				return
			}
			rhs = expr.Conversion(st.Rhs, false)
			stripped = rhs != nil
			if rhs == nil {
				rhs = st.Rhs
			}
		}
	}

	if varSym.Attr.Allocatable {
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC with ALLOCATABLE variable")
		return
	}

	switch {
	case aop == clause.AtomicCapture && captureFirst &&
		st.Rhs.Rank == 0 && !expr.ReferencesSym(st.Rhs, varSym, nil):
		// The update writes a value computed without the variable:
		// an unconditional exchange.
		code.AtomicOp = code.AtomicOp&clause.AtomicSeqCst | clause.AtomicSwap
	case aop == clause.AtomicUpdate && trivialRhs(rhs) &&
		st.Rhs.Rank == 0 && !expr.ReferencesSym(st.Rhs, varSym, nil):
		code.AtomicOp = code.AtomicOp&clause.AtomicSeqCst | clause.AtomicSwap
	case rhs.Kind == expr.Binop:
		newRhs, v, e := r.canonicalizeOp(st, rhs, varSym, stripped)
		if v == nil {
			return
		}
		rhs = newRhs
		if e.Rank != 0 || expr.ReferencesSym(st.Rhs, varSym, v) {
			r.Diag.Errorf(st.Loc, "!$OMP ATOMIC assignment must be var = var op expr or var = expr op var")
			return
		}
	case rhs.Kind == expr.Call && rhs.Fn != expr.IntrinsicConvert && len(rhs.Args) >= 2:
		r.canonicalizeIntrinsic(st, rhs, varSym)
	default:
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC assignment must have an operator or intrinsic on right hand side")
	}

	if aop == clause.AtomicCapture && !captureFirst {
		cst := code.Body[1]
		if cst.Lhs.Kind != expr.Variable || cst.Lhs.Sym == nil || cst.Lhs.Rank != 0 ||
			!cst.Lhs.TS.Intrinsic() {
			r.Diag.Errorf(cst.Loc, "!$OMP ATOMIC CAPTURE capture statement must set a scalar variable of intrinsic type")
			return
		}
		e2 := expr.Conversion(cst.Rhs, false)
		if e2 == nil {
			e2 = expr.Conversion(cst.Rhs, true)
		}
		if e2 == nil {
			e2 = cst.Rhs
		}
		if e2.Kind != expr.Variable || e2.Sym != varSym {
			r.Diag.Errorf(cst.Loc, "!$OMP ATOMIC CAPTURE capture statement reads from different variable than update statement writes into")
		}
	}
}

// canonicalizeOp validates a var = var op expr / var = expr op var
// update and re-associates the operator chain when the variable is
// buried in it. It returns the (possibly rebuilt) right-hand side, the
// node referencing the variable, and the node whose rank the caller
// must check; v is nil after a fatal diagnostic.
//
// The matcher left-associates equal-precedence chains, so x op1 y op2 z
// arrives as (x op1 y) op2 z and the variable can sit at the bottom of
// the left spine. Rebuilding hoists it: the spine node owning the
// variable becomes the new root, its former right operand splices into
// the old chain in its place. The rewrite builds new nodes; the old
// root's subtrees are re-owned, never aliased.
func (r *Resolver) canonicalizeOp(st *stmt.Node, rhs *expr.Expr, varSym *syms.Symbol, stripped bool) (*expr.Expr, *expr.Expr, *expr.Expr) {
	op := rhs.Op
	altOp := expr.OpNone
	switch op {
	case expr.OpPlus:
		altOp = expr.OpMinus
	case expr.OpTimes:
		altOp = expr.OpDivide
	case expr.OpMinus:
		altOp = expr.OpPlus
	case expr.OpDivide:
		altOp = expr.OpTimes
	case expr.OpAnd, expr.OpOr:
	case expr.OpEqv:
		altOp = expr.OpNeqv
	case expr.OpNeqv:
		altOp = expr.OpEqv
	default:
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC assignment operator must be +, *, -, /, .AND., .OR., .EQV. or .NEQV.")
		return rhs, nil, nil
	}

	// var = expr op var: the variable is the right operand, directly or
	// under one widening conversion. Nothing to rebuild.
	e := rhs.Right
	if isVarRef(e, varSym) {
		return rhs, e, e
	}
	if c := expr.Conversion(e, true); c != nil && isVarRef(c, varSym) {
		return rhs, c, e
	}

	// Walk the left spine through same- or partner-operator nodes and
	// widening conversions, recording the path.
	var path []*expr.Expr
	var v *expr.Expr
	cur := rhs.Left
	for {
		if isVarRef(cur, varSym) {
			v = cur
			break
		}
		if c := expr.Conversion(cur, true); c != nil {
			path = append(path, cur)
			cur = c
			continue
		}
		if cur.Kind != expr.Binop || (cur.Op != op && cur.Op != altOp) || cur.Rank != 0 {
			break
		}
		path = append(path, cur)
		cur = cur.Left
	}
	if v == nil {
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC assignment must be var = var op expr or var = expr op var")
		return rhs, nil, nil
	}

	// The deepest operator node on the path is the one whose left
	// subtree holds the variable.
	k := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind == expr.Binop {
			k = i
			break
		}
	}
	if k < 0 {
		// Variable reached through conversions only; it is already a
		// direct operand of the root.
		return rhs, v, v
	}
	rot := path[k]
	switch rot.Op {
	case expr.OpMinus, expr.OpDivide, expr.OpEqv, expr.OpNeqv:
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC var = var op expr not mathematically equivalent to var = var op (expr)")
	}

	// Splice rot's right operand into rot's old position.
	rebuilt := rot.Right
	for i := k - 1; i >= 0; i-- {
		cp := *path[i]
		if cp.Kind == expr.Binop {
			cp.Left = rebuilt
		} else {
			cp.Args = []*expr.Expr{rebuilt}
		}
		rebuilt = &cp
	}
	rootCp := *rhs
	rootCp.Left = rebuilt

	newRoot := &expr.Expr{
		Loc:   rhs.Loc,
		Kind:  expr.Binop,
		Op:    rot.Op,
		TS:    rhs.TS,
		Left:  rot.Left,
		Right: &rootCp,
	}
	if !newRoot.Left.TS.Equal(newRoot.TS) {
		conv := expr.Convert(v.Copy(), newRoot.TS)
		newRoot.Left = conv
		v = conv.Args[0]
	}
	if stripped {
		st.Rhs.Args = []*expr.Expr{newRoot}
	} else {
		st.Rhs = newRoot
	}
	return newRoot, v, v
}

// canonicalizeIntrinsic validates a min/max/iand/ior/ieor update and
// moves the variable argument to the front.
func (r *Resolver) canonicalizeIntrinsic(st *stmt.Node, rhs *expr.Expr, varSym *syms.Symbol) {
	switch rhs.Fn {
	case expr.IntrinsicMin, expr.IntrinsicMax:
	case expr.IntrinsicIand, expr.IntrinsicIor, expr.IntrinsicIeor:
		if len(rhs.Args) > 2 {
			r.Diag.Errorf(st.Loc, "!$OMP ATOMIC assignment intrinsic IAND, IOR or IEOR must have two arguments")
			return
		}
	default:
		r.Diag.Errorf(st.Loc, "!$OMP ATOMIC assignment intrinsic must be MIN, MAX, IAND, IOR or IEOR")
		return
	}
	varIdx := -1
	for i, a := range rhs.Args {
		if isVarRef(a, varSym) {
			if varIdx >= 0 {
				r.Diag.Errorf(st.Loc, "!$OMP ATOMIC intrinsic arguments except one must not reference %s", varSym.Name)
				return
			}
			varIdx = i
		} else if expr.ReferencesSym(a, varSym, nil) {
			r.Diag.Errorf(st.Loc, "!$OMP ATOMIC intrinsic arguments except one must not reference %s", varSym.Name)
			return
		}
		if a.Rank != 0 {
			r.Diag.Errorf(st.Loc, "!$OMP ATOMIC intrinsic arguments must be scalar")
			return
		}
	}
	if varIdx < 0 {
		r.Diag.Errorf(st.Loc, "First or last !$OMP ATOMIC intrinsic argument must be %s", varSym.Name)
		return
	}
	if varIdx != 0 && varIdx != len(rhs.Args)-1 {
		r.Diag.Errorf(st.Loc, "First or last !$OMP ATOMIC intrinsic argument must be %s", varSym.Name)
		return
	}
	if varIdx > 0 {
		a := rhs.Args[varIdx]
		copy(rhs.Args[1:varIdx+1], rhs.Args[0:varIdx])
		rhs.Args[0] = a
	}
}
