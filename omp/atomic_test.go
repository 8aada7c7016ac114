// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package omp

import (
	"testing"

	"github.com/grailbio/directive/clause"
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/stmt"
	"github.com/grailbio/directive/syms"
)

func assign(lhs, rhs *expr.Expr) *stmt.Node {
	n := stmt.NewNode(stmt.Assign, scan.Locus{})
	n.Lhs, n.Rhs = lhs, rhs
	return n
}

func atomicNode(op clause.AtomicOp, body ...*stmt.Node) *stmt.Node {
	n := stmt.NewNode(stmt.OmpAtomic, scan.Locus{})
	n.AtomicOp = op
	n.Body = body
	return n
}

func TestAtomicUpdateNoRotation(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y := intVar(ns, "x"), intVar(ns, "y")
	rhs := expr.NewBinop(expr.OpPlus, expr.NewVar(x),
		expr.NewBinop(expr.OpTimes, expr.NewVar(y), expr.NewInt(2)))
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	if got := r.Diag.Count(); got != 0 {
		t.Fatalf("got %v diagnostics, want 0: %v", got, messages(r.Diag))
	}
	if n.Body[0].Rhs != rhs {
		t.Error("right-hand side rebuilt without need")
	}
	if got, want := n.AtomicOp&clause.AtomicMask, clause.AtomicUpdate; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAtomicRotation(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y, z := intVar(ns, "x"), intVar(ns, "y"), intVar(ns, "z")
	rhs := expr.NewBinop(expr.OpPlus,
		expr.NewBinop(expr.OpPlus, expr.NewVar(x), expr.NewVar(y)),
		expr.NewVar(z))
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	if got := r.Diag.Count(); got != 0 {
		t.Fatalf("got %v diagnostics, want 0: %v", got, messages(r.Diag))
	}
	if got, want := n.Body[0].Rhs.String(), "(x + (y + z))"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAtomicRotationNonAssociative(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y, z := intVar(ns, "x"), intVar(ns, "y"), intVar(ns, "z")
	rhs := expr.NewBinop(expr.OpMinus,
		expr.NewBinop(expr.OpMinus, expr.NewVar(x), expr.NewVar(y)),
		expr.NewVar(z))
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "not mathematically equivalent")
	if got, want := n.Body[0].Rhs.String(), "(x - (y - z))"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAtomicUpdateBecomesSwap(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y := intVar(ns, "x"), intVar(ns, "y")
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), expr.NewVar(y)))
	r := testResolver()
	r.Resolve(n, ns)
	if got := r.Diag.Count(); got != 0 {
		t.Fatalf("got %v diagnostics, want 0: %v", got, messages(r.Diag))
	}
	if got, want := n.AtomicOp&clause.AtomicMask, clause.AtomicSwap; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAtomicWriteSelfReference(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x := intVar(ns, "x")
	rhs := expr.NewBinop(expr.OpPlus, expr.NewVar(x), expr.NewInt(1))
	n := atomicNode(clause.AtomicWrite, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "cannot reference var")
}

func TestAtomicWriteSubscriptSelfReference(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, a := intVar(ns, "x"), intVar(ns, "a")
	a.AS = &syms.ArraySpec{Type: syms.ArrayExplicit, Rank: 1}
	rhs := expr.NewVar(a)
	rhs.Refs = []*expr.Ref{{Kind: expr.RefArray, Dims: []expr.DimSpec{
		{Type: expr.DimenElement, Start: expr.NewVar(x)},
	}}}
	rhs.Resolve()
	n := atomicNode(clause.AtomicWrite, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "cannot reference var")
}

func TestAtomicReadNonVariable(t *testing.T) {
	ns := syms.NewNamespace(nil)
	v, x := intVar(ns, "v"), intVar(ns, "x")
	rhs := expr.NewBinop(expr.OpPlus, expr.NewVar(x), expr.NewInt(1))
	n := atomicNode(clause.AtomicRead, assign(expr.NewVar(v), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "must read from a scalar variable of intrinsic type")
}

func TestAtomicIntrinsicReorder(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y := intVar(ns, "x"), intVar(ns, "y")
	rhs := expr.NewCall(expr.IntrinsicMin, expr.NewVar(y), expr.NewVar(x))
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	if got := r.Diag.Count(); got != 0 {
		t.Fatalf("got %v diagnostics, want 0: %v", got, messages(r.Diag))
	}
	if rhs.Args[0].Sym != x || rhs.Args[1].Sym != y {
		t.Errorf("got %v, want variable argument first", rhs)
	}
}

func TestAtomicIntrinsicArgReferencesVar(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y := intVar(ns, "x"), intVar(ns, "y")
	rhs := expr.NewCall(expr.IntrinsicMax,
		expr.NewBinop(expr.OpPlus, expr.NewVar(y), expr.NewVar(x)),
		expr.NewVar(x))
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "arguments except one must not reference x")
}

func TestAtomicCaptureFirst(t *testing.T) {
	ns := syms.NewNamespace(nil)
	v, x := intVar(ns, "v"), intVar(ns, "x")
	update := assign(expr.NewVar(x),
		expr.NewBinop(expr.OpPlus, expr.NewVar(x), expr.NewInt(1)))
	n := atomicNode(clause.AtomicCapture, assign(expr.NewVar(v), expr.NewVar(x)), update)
	r := testResolver()
	r.Resolve(n, ns)
	if got := r.Diag.Count(); got != 0 {
		t.Fatalf("got %v diagnostics, want 0: %v", got, messages(r.Diag))
	}
	if got, want := n.AtomicOp&clause.AtomicMask, clause.AtomicCapture; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAtomicCaptureFirstBecomesSwap(t *testing.T) {
	ns := syms.NewNamespace(nil)
	v, x, y := intVar(ns, "v"), intVar(ns, "x"), intVar(ns, "y")
	n := atomicNode(clause.AtomicCapture,
		assign(expr.NewVar(v), expr.NewVar(x)),
		assign(expr.NewVar(x), expr.NewVar(y)))
	r := testResolver()
	r.Resolve(n, ns)
	if got := r.Diag.Count(); got != 0 {
		t.Fatalf("got %v diagnostics, want 0: %v", got, messages(r.Diag))
	}
	if got, want := n.AtomicOp&clause.AtomicMask, clause.AtomicSwap; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAtomicCaptureTailMismatch(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y, w := intVar(ns, "x"), intVar(ns, "y"), intVar(ns, "w")
	update := assign(expr.NewVar(x),
		expr.NewBinop(expr.OpPlus, expr.NewVar(x), expr.NewInt(1)))
	n := atomicNode(clause.AtomicCapture, update, assign(expr.NewVar(w), expr.NewVar(y)))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "reads from different variable than update statement writes into")
}

func TestAtomicAllocatable(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x := intVar(ns, "x")
	x.Attr.Allocatable = true
	rhs := expr.NewBinop(expr.OpPlus, expr.NewVar(x), expr.NewInt(1))
	n := atomicNode(clause.AtomicUpdate, assign(expr.NewVar(x), rhs))
	r := testResolver()
	r.Resolve(n, ns)
	wantDiag(t, r.Diag, "!$OMP ATOMIC with ALLOCATABLE variable")
}
