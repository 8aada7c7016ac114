// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package expr implements the expression representation consumed by
// the directive front end: a tagged-variant tree of constants,
// variable references (with array sections), operator applications,
// and intrinsic calls. The package also provides the small expression
// matcher needed for clause arguments; general program expressions are
// out of scope.
package expr

import (
	"fmt"
	"strings"

	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/syms"
)

// Kind is the kind of an expression node.
type Kind int

const (
	// Constant is a literal value.
	Constant Kind = iota
	// Variable is a (possibly sectioned) symbol reference.
	Variable
	// Binop is a binary operator application.
	Binop
	// Call is an intrinsic function call.
	Call
)

// Op enumerates binary operators.
type Op int

const (
	// OpNone is the absence of an operator.
	OpNone Op = iota
	// OpPlus is addition.
	OpPlus
	// OpMinus is subtraction.
	OpMinus
	// OpTimes is multiplication.
	OpTimes
	// OpDivide is division.
	OpDivide
	// OpAnd is logical conjunction.
	OpAnd
	// OpOr is logical disjunction.
	OpOr
	// OpEqv is logical equivalence.
	OpEqv
	// OpNeqv is logical nonequivalence.
	OpNeqv
)

// String renders the operator in source form.
func (o Op) String() string {
	switch o {
	case OpPlus:
		return "+"
	case OpMinus:
		return "-"
	case OpTimes:
		return "*"
	case OpDivide:
		return "/"
	case OpAnd:
		return ".and."
	case OpOr:
		return ".or."
	case OpEqv:
		return ".eqv."
	case OpNeqv:
		return ".neqv."
	default:
		return "?"
	}
}

// Intrinsic identifies the intrinsic called by a Call node.
type Intrinsic int

const (
	// IntrinsicNone marks a non-intrinsic call.
	IntrinsicNone Intrinsic = iota
	// IntrinsicConvert is an implicit type conversion.
	IntrinsicConvert
	// IntrinsicMin is the minimum intrinsic.
	IntrinsicMin
	// IntrinsicMax is the maximum intrinsic.
	IntrinsicMax
	// IntrinsicIand is bitwise and.
	IntrinsicIand
	// IntrinsicIor is bitwise or.
	IntrinsicIor
	// IntrinsicIeor is bitwise exclusive or.
	IntrinsicIeor
)

// Dimen classifies one dimension of an array reference.
type Dimen int

const (
	// DimenElement is a single-element subscript.
	DimenElement Dimen = iota
	// DimenRange is a start:end[:stride] section.
	DimenRange
)

// A DimSpec is one dimension of an array reference.
type DimSpec struct {
	Type   Dimen
	Start  *Expr
	End    *Expr
	Stride *Expr
}

// RefKind classifies a reference component.
type RefKind int

const (
	// RefArray is an array subscript or section.
	RefArray RefKind = iota
	// RefComponent is a derived-type component reference.
	RefComponent
	// RefSubstring is a character substring reference.
	RefSubstring
)

// A Ref is one component of a variable's reference chain.
type Ref struct {
	Kind RefKind

	// Dims holds the subscript list for RefArray.
	Dims []DimSpec
	// Codimen is the number of codimensions in a RefArray.
	Codimen int

	// Component is the component name for RefComponent.
	Component string

	// Start and End delimit a RefSubstring.
	Start, End *Expr
}

// An Expr is an expression node. Nodes own their children; rewrites
// that restructure a tree build new nodes rather than mutating child
// slots in place.
type Expr struct {
	Loc scan.Locus

	Kind Kind
	TS   syms.TypeSpec
	Rank int

	// Sym is the referenced symbol for Variable nodes.
	Sym *syms.Symbol
	// Refs is the reference chain for Variable nodes.
	Refs []*Ref

	// Op, Left and Right describe Binop nodes.
	Op    Op
	Left  *Expr
	Right *Expr

	// Fn and Args describe Call nodes.
	Fn   Intrinsic
	Args []*Expr

	// Int is the value of an integer Constant.
	Int int64
	// Bool is the value of a logical Constant.
	Bool bool
}

// NewInt returns an integer constant of the default kind.
func NewInt(v int64) *Expr {
	return &Expr{Kind: Constant, TS: syms.TypeSpec{Basic: syms.Integer, Kind: 4}, Int: v}
}

// NewVar returns a plain reference to sym.
func NewVar(sym *syms.Symbol) *Expr {
	return &Expr{Kind: Variable, Sym: sym, TS: sym.TS}
}

// NewBinop returns the application of op to l and r. The node's type
// is the unified operand type; callers may Resolve to recompute.
func NewBinop(op Op, l, r *Expr) *Expr {
	e := &Expr{Kind: Binop, Op: op, Left: l, Right: r}
	e.Resolve()
	return e
}

// NewCall returns a call to the intrinsic fn.
func NewCall(fn Intrinsic, args ...*Expr) *Expr {
	e := &Expr{Kind: Call, Fn: fn, Args: args}
	e.Resolve()
	return e
}

// Convert wraps e in a conversion to ts.
func Convert(e *Expr, ts syms.TypeSpec) *Expr {
	return &Expr{Kind: Call, Fn: IntrinsicConvert, Args: []*Expr{e}, TS: ts, Rank: e.Rank}
}

// Conversion reports the operand of e if e is a conversion call that
// widens (widening true) or narrows (widening false) its operand, and
// nil otherwise.
func Conversion(e *Expr, widening bool) *Expr {
	if e == nil || e.Kind != Call || e.Fn != IntrinsicConvert || len(e.Args) != 1 {
		return nil
	}
	inner := e.Args[0]
	if widening {
		if e.TS.WiderThan(inner.TS) {
			return inner
		}
		return nil
	}
	if inner.TS.WiderThan(e.TS) {
		return inner
	}
	return nil
}

// ReferencesSym tells whether sym is referenced anywhere in e except
// in the except node itself.
func ReferencesSym(e *Expr, sym *syms.Symbol, except *Expr) bool {
	if e == nil || e == except {
		return false
	}
	switch e.Kind {
	case Constant, Variable:
		if e.Sym == sym {
			return true
		}
		// Subscripts, section bounds, and substring bounds reference
		// symbols of their own.
		for _, r := range e.Refs {
			for _, d := range r.Dims {
				if ReferencesSym(d.Start, sym, except) ||
					ReferencesSym(d.End, sym, except) ||
					ReferencesSym(d.Stride, sym, except) {
					return true
				}
			}
			if ReferencesSym(r.Start, sym, except) || ReferencesSym(r.End, sym, except) {
				return true
			}
		}
		return false
	case Binop:
		if ReferencesSym(e.Right, sym, except) {
			return true
		}
		return ReferencesSym(e.Left, sym, except)
	case Call:
		for _, arg := range e.Args {
			if ReferencesSym(arg, sym, except) {
				return true
			}
		}
		return false
	default:
		panic(fmt.Sprintf("expr: bad kind %d", e.Kind))
	}
}

// ConstInt extracts the value of a constant scalar integer expression.
func (e *Expr) ConstInt() (int64, bool) {
	if e == nil || e.Kind != Constant || e.TS.Basic != syms.Integer || e.Rank != 0 {
		return 0, false
	}
	return e.Int, true
}

// Copy returns a deep copy of e.
func (e *Expr) Copy() *Expr {
	if e == nil {
		return nil
	}
	c := *e
	c.Left = e.Left.Copy()
	c.Right = e.Right.Copy()
	if e.Args != nil {
		c.Args = make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			c.Args[i] = a.Copy()
		}
	}
	if e.Refs != nil {
		c.Refs = make([]*Ref, len(e.Refs))
		for i, r := range e.Refs {
			rc := *r
			if r.Dims != nil {
				rc.Dims = make([]DimSpec, len(r.Dims))
				for j, d := range r.Dims {
					rc.Dims[j] = DimSpec{
						Type:   d.Type,
						Start:  d.Start.Copy(),
						End:    d.End.Copy(),
						Stride: d.Stride.Copy(),
					}
				}
			}
			rc.Start = r.Start.Copy()
			rc.End = r.End.Copy()
			c.Refs[i] = &rc
		}
	}
	return &c
}

// Resolve computes the node's type and rank bottom-up. It reports
// false when the node cannot be given a consistent type; callers
// translate that into a diagnostic appropriate to their context.
func (e *Expr) Resolve() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case Constant:
		e.Rank = 0
		return e.TS.Basic != syms.Unknown
	case Variable:
		if e.Sym == nil {
			return false
		}
		e.TS = e.Sym.TS
		e.Rank = 0
		if len(e.Refs) == 0 {
			if e.Sym.AS != nil {
				e.Rank = e.Sym.AS.Rank
			}
			return true
		}
		for _, r := range e.Refs {
			if r.Kind != RefArray {
				continue
			}
			for _, d := range r.Dims {
				if d.Type == DimenRange {
					e.Rank++
				}
			}
		}
		return true
	case Binop:
		lok := e.Left.Resolve()
		rok := e.Right.Resolve()
		if !lok || !rok {
			return false
		}
		e.Rank = e.Left.Rank
		if e.Right.Rank > e.Rank {
			e.Rank = e.Right.Rank
		}
		switch e.Op {
		case OpAnd, OpOr, OpEqv, OpNeqv:
			if e.Left.TS.Basic != syms.Logical || e.Right.TS.Basic != syms.Logical {
				return false
			}
			e.TS = e.Left.TS
		default:
			if !e.Left.TS.Numeric() || !e.Right.TS.Numeric() {
				return false
			}
			e.TS = e.Left.TS
			if e.Right.TS.WiderThan(e.TS) {
				e.TS = e.Right.TS
			}
		}
		return true
	case Call:
		for _, a := range e.Args {
			if !a.Resolve() {
				return false
			}
		}
		switch e.Fn {
		case IntrinsicConvert:
			// The target type is fixed at construction.
			if len(e.Args) != 1 {
				return false
			}
			e.Rank = e.Args[0].Rank
		default:
			if len(e.Args) == 0 {
				return false
			}
			e.TS = e.Args[0].TS
			e.Rank = e.Args[0].Rank
		}
		return true
	default:
		panic(fmt.Sprintf("expr: bad kind %d", e.Kind))
	}
}

// String renders e in source-like form for diagnostics and tests.
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case Constant:
		if e.TS.Basic == syms.Logical {
			if e.Bool {
				return ".true."
			}
			return ".false."
		}
		return fmt.Sprintf("%d", e.Int)
	case Variable:
		var b strings.Builder
		b.WriteString(e.Sym.Name)
		for _, r := range e.Refs {
			if r.Kind != RefArray {
				continue
			}
			b.WriteByte('(')
			for i, d := range r.Dims {
				if i > 0 {
					b.WriteByte(',')
				}
				if d.Type == DimenElement {
					b.WriteString(d.Start.String())
					continue
				}
				if d.Start != nil {
					b.WriteString(d.Start.String())
				}
				b.WriteByte(':')
				if d.End != nil {
					b.WriteString(d.End.String())
				}
				if d.Stride != nil {
					b.WriteByte(':')
					b.WriteString(d.Stride.String())
				}
			}
			b.WriteByte(')')
		}
		return b.String()
	case Binop:
		return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
	case Call:
		if e.Fn == IntrinsicConvert {
			return fmt.Sprintf("%s(%s)", e.TS, e.Args[0])
		}
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s(%s)", intrinsicName(e.Fn), strings.Join(args, ", "))
	default:
		return "<bad expr>"
	}
}

func intrinsicName(fn Intrinsic) string {
	switch fn {
	case IntrinsicMin:
		return "min"
	case IntrinsicMax:
		return "max"
	case IntrinsicIand:
		return "iand"
	case IntrinsicIor:
		return "ior"
	case IntrinsicIeor:
		return "ieor"
	case IntrinsicConvert:
		return "convert"
	default:
		return "call"
	}
}
