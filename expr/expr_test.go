// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package expr

import (
	"testing"

	"github.com/grailbio/directive/syms"
)

func intSym(ns *syms.Namespace, name string) *syms.Symbol {
	return ns.Declare(&syms.Symbol{
		Name: name,
		Attr: syms.Attr{Flavor: syms.FlavorVariable},
		TS:   syms.TypeSpec{Basic: syms.Integer, Kind: 4},
	})
}

func TestResolveBinop(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x := ns.Declare(&syms.Symbol{
		Name: "x",
		Attr: syms.Attr{Flavor: syms.FlavorVariable},
		TS:   syms.TypeSpec{Basic: syms.Real, Kind: 8},
	})
	i := intSym(ns, "i")

	e := NewBinop(OpPlus, NewVar(i), NewVar(x))
	if got, want := e.TS, x.TS; !got.Equal(want) {
		t.Errorf("got %v, want widened %v", got, want)
	}
	if e.Rank != 0 {
		t.Errorf("got rank %v, want 0", e.Rank)
	}

	bad := &Expr{Kind: Binop, Op: OpAnd, Left: NewVar(i), Right: NewVar(i)}
	if bad.Resolve() {
		t.Error(".and. of integers resolved")
	}
}

func TestResolveSectionRank(t *testing.T) {
	ns := syms.NewNamespace(nil)
	a := ns.Declare(&syms.Symbol{
		Name: "a",
		Attr: syms.Attr{Flavor: syms.FlavorVariable},
		TS:   syms.TypeSpec{Basic: syms.Real, Kind: 4},
		AS:   &syms.ArraySpec{Type: syms.ArrayExplicit, Rank: 2},
	})

	whole := NewVar(a)
	whole.Resolve()
	if got, want := whole.Rank, 2; got != want {
		t.Errorf("whole array: got rank %v, want %v", got, want)
	}

	elem := NewVar(a)
	elem.Refs = []*Ref{{Kind: RefArray, Dims: []DimSpec{
		{Type: DimenElement, Start: NewInt(1)},
		{Type: DimenElement, Start: NewInt(2)},
	}}}
	elem.Resolve()
	if got, want := elem.Rank, 0; got != want {
		t.Errorf("element: got rank %v, want %v", got, want)
	}

	sect := NewVar(a)
	sect.Refs = []*Ref{{Kind: RefArray, Dims: []DimSpec{
		{Type: DimenRange, Start: NewInt(1), End: NewInt(10)},
		{Type: DimenElement, Start: NewInt(2)},
	}}}
	sect.Resolve()
	if got, want := sect.Rank, 1; got != want {
		t.Errorf("section: got rank %v, want %v", got, want)
	}
}

func TestConstInt(t *testing.T) {
	if v, ok := NewInt(7).ConstInt(); !ok || v != 7 {
		t.Errorf("got %v, %v, want 7, true", v, ok)
	}
	ns := syms.NewNamespace(nil)
	if _, ok := NewVar(intSym(ns, "i")).ConstInt(); ok {
		t.Error("variable extracted as constant")
	}
}

func TestConversion(t *testing.T) {
	ns := syms.NewNamespace(nil)
	i := intSym(ns, "i")
	widened := Convert(NewVar(i), syms.TypeSpec{Basic: syms.Real, Kind: 8})
	if got := Conversion(widened, true); got == nil || got.Sym != i {
		t.Errorf("widening conversion not stripped: got %v", got)
	}
	if got := Conversion(widened, false); got != nil {
		t.Errorf("widening stripped as narrowing: got %v", got)
	}
	narrowed := Convert(widened, syms.TypeSpec{Basic: syms.Integer, Kind: 4})
	if got := Conversion(narrowed, false); got != widened {
		t.Errorf("narrowing conversion not stripped: got %v", got)
	}
}

func TestReferencesSym(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x, y := intSym(ns, "x"), intSym(ns, "y")
	vx := NewVar(x)
	e := NewBinop(OpPlus, vx, NewVar(y))
	if !ReferencesSym(e, x, nil) {
		t.Error("x not found")
	}
	if ReferencesSym(e, x, vx) {
		t.Error("excepted node still found")
	}
	z := intSym(ns, "z")
	if ReferencesSym(e, z, nil) {
		t.Error("z found")
	}

	a := ns.Declare(&syms.Symbol{
		Name: "a",
		Attr: syms.Attr{Flavor: syms.FlavorVariable},
		TS:   syms.TypeSpec{Basic: syms.Integer, Kind: 4},
		AS:   &syms.ArraySpec{Type: syms.ArrayExplicit, Rank: 1},
	})
	sub := NewVar(a)
	sub.Refs = []*Ref{{Kind: RefArray, Dims: []DimSpec{
		{Type: DimenElement, Start: NewVar(x)},
	}}}
	if !ReferencesSym(sub, x, nil) {
		t.Error("subscript x not found")
	}
	if ReferencesSym(sub, y, nil) {
		t.Error("y found in a(x)")
	}
}

func TestCopyIsDeep(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x := intSym(ns, "x")
	e := NewBinop(OpTimes, NewVar(x), NewInt(3))
	c := e.Copy()
	c.Right.Int = 99
	if got, want := e.Right.Int, int64(3); got != want {
		t.Errorf("copy aliased original: got %v, want %v", got, want)
	}
	if (*Expr)(nil).Copy() != nil {
		t.Error("nil copy not nil")
	}
}

func TestString(t *testing.T) {
	ns := syms.NewNamespace(nil)
	x := intSym(ns, "x")
	e := NewBinop(OpPlus, NewVar(x), NewInt(1))
	if got, want := e.String(), "(x + 1)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
