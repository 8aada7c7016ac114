// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package clause defines the structured representation of directive
// clauses: the Set attached to each directive occurrence, the ordered
// symbol lists populated by the clause matcher, and the permission
// masks that gate which clauses a directive accepts.
package clause

import (
	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/syms"
)

// List indexes the named symbol lists of a Set by semantic category.
// Reduction lists occupy one slot per operator; their slots are
// contiguous so validators can range over them. Firstprivate and
// Lastprivate are adjacent: the cross-validator's paired overlap pass
// depends on it.
type List int

const (
	// ListPrivate holds private-clause symbols.
	ListPrivate List = iota
	// ListFirstprivate holds firstprivate-clause symbols.
	ListFirstprivate
	// ListLastprivate holds lastprivate-clause symbols.
	ListLastprivate
	// ListCopyprivate holds copyprivate-clause symbols.
	ListCopyprivate
	// ListShared holds shared-clause symbols.
	ListShared
	// ListCopyin holds copyin-clause symbols.
	ListCopyin
	// ListUniform holds uniform-clause symbols.
	ListUniform
	// ListAligned holds aligned-clause symbols with their alignments.
	ListAligned
	// ListLinear holds linear-clause symbols with their steps.
	ListLinear
	// ListDependIn holds depend(in:) array sections.
	ListDependIn
	// ListDependOut holds depend(out:) and depend(inout:) sections.
	ListDependOut

	// ListReductionPlus through ListReductionIeor hold reduction
	// symbols, one list per operator.
	ListReductionPlus
	// ListReductionTimes is the * reduction list.
	ListReductionTimes
	// ListReductionMinus is the - reduction list.
	ListReductionMinus
	// ListReductionAnd is the .and. reduction list.
	ListReductionAnd
	// ListReductionOr is the .or. reduction list.
	ListReductionOr
	// ListReductionEqv is the .eqv. reduction list.
	ListReductionEqv
	// ListReductionNeqv is the .neqv. reduction list.
	ListReductionNeqv
	// ListReductionMax is the max reduction list.
	ListReductionMax
	// ListReductionMin is the min reduction list.
	ListReductionMin
	// ListReductionIand is the iand reduction list.
	ListReductionIand
	// ListReductionIor is the ior reduction list.
	ListReductionIor
	// ListReductionIeor is the ieor reduction list.
	ListReductionIeor

	// NumLists is the number of list slots in a Set.
	NumLists
)

// ReductionFirst and ReductionLast delimit the reduction list slots.
const (
	ReductionFirst = ListReductionPlus
	ReductionLast  = ListReductionIeor
)

// Reduction tells whether l is a reduction list slot.
func (l List) Reduction() bool {
	return l >= ReductionFirst && l <= ReductionLast
}

// Name returns the clause keyword used in diagnostics for l.
func (l List) Name() string {
	switch l {
	case ListPrivate:
		return "PRIVATE"
	case ListFirstprivate:
		return "FIRSTPRIVATE"
	case ListLastprivate:
		return "LASTPRIVATE"
	case ListCopyprivate:
		return "COPYPRIVATE"
	case ListShared:
		return "SHARED"
	case ListCopyin:
		return "COPYIN"
	case ListUniform:
		return "UNIFORM"
	case ListAligned:
		return "ALIGNED"
	case ListLinear:
		return "LINEAR"
	case ListDependIn, ListDependOut:
		return "DEPEND"
	default:
		if l.Reduction() {
			return "REDUCTION"
		}
		return "?"
	}
}

// An Item is one entry of a named symbol list: a symbol reference with
// an optional attached expression (an array section for depend, an
// alignment for aligned, a step for linear).
type Item struct {
	Sym  *syms.Symbol
	Expr *expr.Expr
}

// A NameList is an ordered sequence of items. Insertion order is
// preserved; downstream lowering depends on it (reduction variable
// order, for one).
type NameList []*Item

// DefaultSharing enumerates default-clause policies.
type DefaultSharing int

const (
	// DefaultUnset means no default clause was given.
	DefaultUnset DefaultSharing = iota
	// DefaultShared is default(shared).
	DefaultShared
	// DefaultPrivate is default(private).
	DefaultPrivate
	// DefaultNone is default(none).
	DefaultNone
	// DefaultFirstprivate is default(firstprivate).
	DefaultFirstprivate
)

// Schedule enumerates schedule-clause kinds.
type Schedule int

const (
	// SchedNone means no schedule clause was given.
	SchedNone Schedule = iota
	// SchedStatic is schedule(static).
	SchedStatic
	// SchedDynamic is schedule(dynamic).
	SchedDynamic
	// SchedGuided is schedule(guided).
	SchedGuided
	// SchedRuntime is schedule(runtime).
	SchedRuntime
	// SchedAuto is schedule(auto).
	SchedAuto
)

// ProcBind enumerates proc_bind-clause policies.
type ProcBind int

const (
	// ProcBindUnset means no proc_bind clause was given.
	ProcBindUnset ProcBind = iota
	// ProcBindMaster is proc_bind(master).
	ProcBindMaster
	// ProcBindSpread is proc_bind(spread).
	ProcBindSpread
	// ProcBindClose is proc_bind(close).
	ProcBindClose
)

// CancelKind enumerates the construct kinds a cancel directive names.
type CancelKind int

const (
	// CancelUnknown is an unrecognized cancel kind.
	CancelUnknown CancelKind = iota
	// CancelParallel cancels a parallel construct.
	CancelParallel
	// CancelSections cancels a sections construct.
	CancelSections
	// CancelDo cancels a do construct.
	CancelDo
	// CancelTaskgroup cancels a taskgroup construct.
	CancelTaskgroup
)

// AtomicOp tags an atomic directive's operation. The sequential
// consistency request is carried as a flag bit alongside the tag.
type AtomicOp int

const (
	// AtomicUpdate is the default read-modify-write operation.
	AtomicUpdate AtomicOp = iota
	// AtomicRead is an atomic read.
	AtomicRead
	// AtomicWrite is an atomic write.
	AtomicWrite
	// AtomicCapture is an update paired with a value capture.
	AtomicCapture
	// AtomicSwap is an unconditional value exchange; the canonicalizer
	// re-tags qualifying updates.
	AtomicSwap

	// AtomicMask extracts the operation from a tagged AtomicOp.
	AtomicMask AtomicOp = 7
	// AtomicSeqCst flags a seq_cst modifier.
	AtomicSeqCst AtomicOp = 8
)

// A Set holds all clauses of one directive occurrence. It is
// allocated when the directive begins parsing and owned by the
// statement node it attaches to.
type Set struct {
	// Scalar sub-expression clauses; nil when absent.
	If         *expr.Expr
	Final      *expr.Expr
	NumThreads *expr.Expr
	ChunkSize  *expr.Expr
	Safelen    *expr.Expr
	Simdlen    *expr.Expr

	// Lists holds the named symbol lists by category.
	Lists [NumLists]NameList

	Default  DefaultSharing
	Sched    Schedule
	ProcBind ProcBind
	Cancel   CancelKind

	// Collapse is the collapse factor; zero when absent.
	Collapse int

	Ordered     bool
	Untied      bool
	Mergeable   bool
	Inbranch    bool
	Notinbranch bool
}

// Append adds an item for sym to list l and returns it.
func (c *Set) Append(l List, sym *syms.Symbol) *Item {
	it := &Item{Sym: sym}
	c.Lists[l] = append(c.Lists[l], it)
	return it
}

// Empty tells whether no clause of any kind is present.
func (c *Set) Empty() bool {
	if c.If != nil || c.Final != nil || c.NumThreads != nil || c.ChunkSize != nil ||
		c.Safelen != nil || c.Simdlen != nil {
		return false
	}
	for i := range c.Lists {
		if len(c.Lists[i]) > 0 {
			return false
		}
	}
	return c.Default == DefaultUnset && c.Sched == SchedNone &&
		c.ProcBind == ProcBindUnset && c.Cancel == CancelUnknown &&
		c.Collapse == 0 && !c.Ordered && !c.Untied && !c.Mergeable &&
		!c.Inbranch && !c.Notinbranch
}

// A DeclareSimd associates a candidate procedure symbol with a clause
// set. Records chain newest-first off the scope that declared them.
type DeclareSimd struct {
	Where   scan.Locus
	Proc    *syms.Symbol
	Clauses *Set
	Next    *DeclareSimd
}
