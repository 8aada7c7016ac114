// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package syms implements the symbol model consumed by the directive
// front end: symbols with attribute sets, basic and derived type
// specifications, array specifications, and namespaces with common
// blocks and host association. It is deliberately a small slice of a
// full front-end symbol table; it carries exactly the properties the
// directive passes interrogate.
package syms

import "fmt"

// BasicType enumerates the intrinsic basic types. The declaration
// order doubles as the numeric conversion ordering: a conversion to a
// type that compares greater (or to a greater kind of the same type)
// is widening.
type BasicType int

const (
	// Unknown is the zero, undetermined type.
	Unknown BasicType = iota
	// Integer is the integral type.
	Integer
	// Real is the floating-point type.
	Real
	// Complex is the complex floating-point type.
	Complex
	// Logical is the boolean type.
	Logical
	// Character is the string type.
	Character
	// DerivedType denotes a user-defined structure type.
	DerivedType
)

// String renders the basic type name.
func (b BasicType) String() string {
	switch b {
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Complex:
		return "COMPLEX"
	case Logical:
		return "LOGICAL"
	case Character:
		return "CHARACTER"
	case DerivedType:
		return "TYPE"
	default:
		return "UNKNOWN"
	}
}

// A Derived describes the properties of a derived (structure) type
// that the directive validator interrogates.
type Derived struct {
	// Name is the type name.
	Name string
	// AllocComp is set when the type has allocatable components.
	AllocComp bool
	// CPtrInterop is set for the C-pointer interoperation type
	// (iso_c_binding's c_ptr).
	CPtrInterop bool
}

// A TypeSpec is the resolved type of a symbol or expression.
type TypeSpec struct {
	Basic BasicType
	// Kind is the representation width selector (4, 8, ...).
	Kind int
	// Derived is set when Basic is DerivedType.
	Derived *Derived
}

// Numeric tells whether the type is an arithmetic type.
func (t TypeSpec) Numeric() bool {
	return t.Basic == Integer || t.Basic == Real || t.Basic == Complex
}

// Intrinsic tells whether the type is one of the intrinsic scalar
// types accepted by atomic operations.
func (t TypeSpec) Intrinsic() bool {
	return t.Numeric() || t.Basic == Logical
}

// WiderThan tells whether converting from u to t widens the value.
func (t TypeSpec) WiderThan(u TypeSpec) bool {
	return t.Basic > u.Basic || (t.Basic == u.Basic && t.Kind > u.Kind)
}

// Equal tells whether t and u are the same type and kind.
func (t TypeSpec) Equal(u TypeSpec) bool {
	return t.Basic == u.Basic && t.Kind == u.Kind && t.Derived == u.Derived
}

// String renders the type for diagnostics, e.g. "INTEGER(4)".
func (t TypeSpec) String() string {
	if t.Basic == DerivedType && t.Derived != nil {
		return fmt.Sprintf("TYPE(%s)", t.Derived.Name)
	}
	if t.Kind != 0 {
		return fmt.Sprintf("%s(%d)", t.Basic, t.Kind)
	}
	return t.Basic.String()
}

// Flavor classifies what kind of entity a symbol names.
type Flavor int

const (
	// FlavorUnknown is an as-yet unclassified symbol.
	FlavorUnknown Flavor = iota
	// FlavorVariable is a data object.
	FlavorVariable
	// FlavorParameter is a named constant.
	FlavorParameter
	// FlavorProcedure is a procedure.
	FlavorProcedure
)

// String renders the flavor name.
func (f Flavor) String() string {
	switch f {
	case FlavorVariable:
		return "variable"
	case FlavorParameter:
		return "parameter"
	case FlavorProcedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// ProcKind classifies how a procedure symbol is provided.
type ProcKind int

const (
	// ProcUnknown is an undetermined procedure kind.
	ProcUnknown ProcKind = iota
	// ProcIntrinsic is a language intrinsic.
	ProcIntrinsic
	// ProcExternal is an external procedure.
	ProcExternal
	// ProcDummy is a dummy procedure argument.
	ProcDummy
)

// ArrayType classifies an array specification.
type ArrayType int

const (
	// ArrayExplicit is an explicit-shape array.
	ArrayExplicit ArrayType = iota
	// ArrayAssumedSize is an assumed-size array (last bound "*").
	ArrayAssumedSize
	// ArrayDeferred is a deferred-shape array.
	ArrayDeferred
)

// An ArraySpec describes a symbol's declared array shape.
type ArraySpec struct {
	Type ArrayType
	// Rank is the number of declared dimensions.
	Rank int
}

// Attr is a symbol's attribute set. The fields mirror the declaration
// attributes the directive passes check; most symbols set only a few.
type Attr struct {
	Flavor Flavor
	Proc   ProcKind

	Intrinsic  bool
	External   bool
	Generic    bool
	Entry      bool
	Result     bool
	Dummy      bool
	Subroutine bool
	Function   bool

	Pointer     bool
	ProcPointer bool
	Target      bool
	Allocatable bool
	Value       bool

	// CrayPointer and CrayPointee model the extension pointer/pointee
	// pairing: a pointee's storage is accessed through its pointer.
	CrayPointer bool
	CrayPointee bool

	Threadprivate bool
	InCommon      bool
	InNamelist    bool

	// IfSource is set when the symbol's interface is known from an
	// explicit source (interface block or containment).
	IfSource bool

	// UseAssoc is set for use-associated symbols; their attributes are
	// fixed by the defining module.
	UseAssoc bool

	// Artificial marks compiler-synthesized temporaries.
	Artificial bool

	// Referenced is set once the symbol appears in analyzed text.
	Referenced bool
}

// A Symbol is a named entity in a namespace.
type Symbol struct {
	Name string
	Attr Attr
	TS   TypeSpec
	AS   *ArraySpec

	// NS is the owning namespace.
	NS *Namespace

	// ResultSym is the function-result symbol for procedures; for a
	// function without a distinct result variable it is the symbol
	// itself.
	ResultSym *Symbol

	// Size is the storage size in bytes, when known. The kernels
	// decomposer uses it to size device mappings.
	Size int64
}

// SetReferenced marks the symbol as referenced.
func (sym *Symbol) SetReferenced() { sym.Attr.Referenced = true }

// AddFlavor reclassifies the symbol as f. It is an error to change an
// already established, different flavor.
func (sym *Symbol) AddFlavor(f Flavor) error {
	if sym.Attr.Flavor != FlavorUnknown && sym.Attr.Flavor != f {
		return fmt.Errorf("symbol %s is already a %s", sym.Name, sym.Attr.Flavor)
	}
	sym.Attr.Flavor = f
	return nil
}

// AddIntrinsic marks the symbol as an intrinsic procedure. It is an
// error if the symbol has a conflicting procedure kind.
func (sym *Symbol) AddIntrinsic() error {
	if sym.Attr.External {
		return fmt.Errorf("symbol %s is EXTERNAL and cannot be INTRINSIC", sym.Name)
	}
	if sym.Attr.Proc != ProcUnknown && sym.Attr.Proc != ProcIntrinsic {
		return fmt.Errorf("symbol %s already has a procedure kind", sym.Name)
	}
	sym.Attr.Intrinsic = true
	sym.Attr.Proc = ProcIntrinsic
	return nil
}

// AddThreadprivate marks the symbol threadprivate. Only saved (static)
// variables may be threadprivate; the front end models this as a
// flavor restriction.
func (sym *Symbol) AddThreadprivate() error {
	if sym.Attr.Flavor == FlavorProcedure || sym.Attr.Flavor == FlavorParameter {
		return fmt.Errorf("%s %s cannot be THREADPRIVATE", sym.Attr.Flavor, sym.Name)
	}
	sym.Attr.Threadprivate = true
	return nil
}

// A Common is a named common block: an ordered group of member
// symbols sharing storage.
type Common struct {
	Name string
	Head []*Symbol

	Threadprivate bool
}

// A Namespace is a scope: it owns symbols and common blocks and may
// have a parent scope for host association.
type Namespace struct {
	Parent *Namespace

	// ProcName is the procedure this namespace belongs to, if any.
	ProcName *Symbol

	// Entries lists alternate entry symbols when the procedure has an
	// ENTRY master.
	Entries []*Symbol

	// EntryMaster is set when ProcName is an entry master whose
	// alternate entries are listed in Entries.
	EntryMaster bool

	symbols map[string]*Symbol
	commons map[string]*Common
}

// NewNamespace creates a namespace with the given parent (nil for a
// root scope).
func NewNamespace(parent *Namespace) *Namespace {
	return &Namespace{
		Parent:  parent,
		symbols: make(map[string]*Symbol),
		commons: make(map[string]*Common),
	}
}

// Lookup finds name in ns or an ancestor scope. It returns nil if the
// name is nowhere declared.
func (ns *Namespace) Lookup(name string) *Symbol {
	for s := ns; s != nil; s = s.Parent {
		if sym, ok := s.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

// Get finds name in ns or an ancestor scope, implicitly declaring it
// in ns when absent. Implicit declarations follow the default typing
// rule: names beginning with i through n are integers, all others are
// reals.
func (ns *Namespace) Get(name string) *Symbol {
	if sym := ns.Lookup(name); sym != nil {
		return sym
	}
	sym := &Symbol{Name: name, NS: ns, TS: implicitType(name)}
	ns.symbols[name] = sym
	return sym
}

// Declare inserts sym into ns under its name, replacing any implicit
// declaration. It is the hook test fixtures and front-end declaration
// processing use to install fully attributed symbols.
func (ns *Namespace) Declare(sym *Symbol) *Symbol {
	sym.NS = ns
	ns.symbols[sym.Name] = sym
	return sym
}

// Common returns the named common block declared in ns or an ancestor,
// or nil.
func (ns *Namespace) Common(name string) *Common {
	for s := ns; s != nil; s = s.Parent {
		if b, ok := s.commons[name]; ok {
			return b
		}
	}
	return nil
}

// DeclareCommon declares (or extends) the named common block with the
// given member symbols, marking each member as in-common.
func (ns *Namespace) DeclareCommon(name string, members ...*Symbol) *Common {
	b, ok := ns.commons[name]
	if !ok {
		b = &Common{Name: name}
		ns.commons[name] = b
	}
	for _, sym := range members {
		sym.Attr.InCommon = true
		b.Head = append(b.Head, sym)
	}
	return b
}

func implicitType(name string) TypeSpec {
	if name != "" && name[0] >= 'i' && name[0] <= 'n' {
		return TypeSpec{Basic: Integer, Kind: 4}
	}
	return TypeSpec{Basic: Real, Kind: 4}
}
