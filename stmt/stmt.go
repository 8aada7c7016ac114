// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stmt defines the statement tree the directive passes operate
// on. Directive occurrences are ordinary nodes whose bodies hold the
// statements they apply to; the resolver walks the tree validating
// clause sets, and the accelerator pass restructures region nodes in
// place.
package stmt

import (
	"github.com/grailbio/directive/clause"
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/syms"
)

// Op identifies the kind of a statement node.
type Op int

const (
	// Nop is an empty statement.
	Nop Op = iota
	// Assign is an assignment Lhs = Rhs.
	Assign
	// Call is a subroutine call.
	Call
	// Do is a counted loop over Iter.
	Do
	// DoWhile is a condition-controlled loop.
	DoWhile
	// DoConcurrent is a concurrent loop over Iter.
	DoConcurrent
	// Bind is a scope introducing Vars around Body.
	Bind
	// Try runs Body, then Cleanup regardless of how Body exits.
	Try
	// Continue is a no-op loop-body terminator.
	Continue

	// OmpParallel through OmpCancellationPoint are executable OpenMP
	// directive occurrences.
	OmpParallel
	OmpDo
	OmpSimd
	OmpDoSimd
	OmpParallelDo
	OmpParallelDoSimd
	OmpSections
	OmpParallelSections
	OmpSection
	OmpSingle
	OmpWorkshare
	OmpParallelWorkshare
	OmpTask
	OmpTaskwait
	OmpTaskyield
	OmpTaskgroup
	OmpMaster
	OmpCritical
	OmpOrdered
	OmpBarrier
	OmpFlush
	OmpAtomic
	OmpCancel
	OmpCancellationPoint

	// AccRegion is an accelerator compute or data region; its kind is
	// carried in Region.
	AccRegion
	// AccLoop is an accelerator loop directive wrapping a Do in Body.
	AccLoop
)

var opNames = map[Op]string{
	Nop:                  "NOP",
	Assign:               "ASSIGN",
	Call:                 "CALL",
	Do:                   "DO",
	DoWhile:              "DO WHILE",
	DoConcurrent:         "DO CONCURRENT",
	Bind:                 "BIND",
	Try:                  "TRY",
	Continue:             "CONTINUE",
	OmpParallel:          "!$OMP PARALLEL",
	OmpDo:                "!$OMP DO",
	OmpSimd:              "!$OMP SIMD",
	OmpDoSimd:            "!$OMP DO SIMD",
	OmpParallelDo:        "!$OMP PARALLEL DO",
	OmpParallelDoSimd:    "!$OMP PARALLEL DO SIMD",
	OmpSections:          "!$OMP SECTIONS",
	OmpParallelSections:  "!$OMP PARALLEL SECTIONS",
	OmpSection:           "!$OMP SECTION",
	OmpSingle:            "!$OMP SINGLE",
	OmpWorkshare:         "!$OMP WORKSHARE",
	OmpParallelWorkshare: "!$OMP PARALLEL WORKSHARE",
	OmpTask:              "!$OMP TASK",
	OmpTaskwait:          "!$OMP TASKWAIT",
	OmpTaskyield:         "!$OMP TASKYIELD",
	OmpTaskgroup:         "!$OMP TASKGROUP",
	OmpMaster:            "!$OMP MASTER",
	OmpCritical:          "!$OMP CRITICAL",
	OmpOrdered:           "!$OMP ORDERED",
	OmpBarrier:           "!$OMP BARRIER",
	OmpFlush:             "!$OMP FLUSH",
	OmpAtomic:            "!$OMP ATOMIC",
	OmpCancel:            "!$OMP CANCEL",
	OmpCancellationPoint: "!$OMP CANCELLATION POINT",
	AccRegion:            "!$ACC REGION",
	AccLoop:              "!$ACC LOOP",
}

// String returns the directive spelling for directive ops and an
// uppercase tag for plain statements.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "?"
}

// OmpDirective tells whether o is an OpenMP directive occurrence.
func (o Op) OmpDirective() bool {
	return o >= OmpParallel && o <= OmpCancellationPoint
}

// An Iterator describes the control of a counted loop.
type Iterator struct {
	Var   *syms.Symbol
	Start *expr.Expr
	End   *expr.Expr
	Step  *expr.Expr
}

// A Node is one statement. Fields beyond Op and Loc are populated
// according to the op; unused fields stay zero.
type Node struct {
	Loc scan.Locus
	Op  Op

	// Assign and OmpAtomic.
	Lhs *expr.Expr
	Rhs *expr.Expr

	// Call.
	FnName string
	Args   []*expr.Expr

	// Do, DoConcurrent.
	Iter *Iterator

	// Bind.
	Vars []*syms.Symbol

	// Body holds the statements the node governs. For directive nodes
	// it is the structured block; for loop ops it is the loop body; for
	// Try it is the protected sequence.
	Body []*Node

	// Cleanup is Try's always-run tail.
	Cleanup []*Node

	// Clauses is the OpenMP clause set of a directive node.
	Clauses *clause.Set

	// AtomicOp tags an OmpAtomic node. The atomic statement is Body[0];
	// a capture's second statement is Body[1].
	AtomicOp clause.AtomicOp

	// Name is the critical-section name of an OmpCritical node, if any,
	// and the flush variable list is carried in Args as variable
	// references.
	Name string

	// End marks the node as an end-of-construct marker for its op, as
	// produced for "end do", "end single" and friends. Nowait records a
	// NOWAIT on such a marker.
	End    bool
	Nowait bool

	// Region and Acc describe an accelerator node.
	Region RegionKind
	Acc    []*Clause
}

// NewNode allocates a node of the given op at loc.
func NewNode(op Op, loc scan.Locus) *Node {
	return &Node{Op: op, Loc: loc}
}

// InnerDo returns the Do node a looping directive governs: the first
// statement of the body. It returns nil when the body does not begin
// with a counted loop.
func (n *Node) InnerDo() *Node {
	if len(n.Body) == 0 {
		return nil
	}
	if inner := n.Body[0]; inner.Op == Do {
		return inner
	}
	return nil
}
