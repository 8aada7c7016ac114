// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package stmt

import (
	"fmt"

	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/syms"
)

// RegionKind classifies an AccRegion node.
type RegionKind int

const (
	// RegionKernels is an unprocessed kernels region.
	RegionKernels RegionKind = iota
	// RegionParallelized is a parallel region produced from a
	// parallelizable loop nest.
	RegionParallelized
	// RegionGangSingle is a parallel region serialized to one gang.
	RegionGangSingle
	// RegionData is an enclosing data region holding the original
	// region's data motion clauses.
	RegionData
)

// String returns the region spelling used in dumps.
func (k RegionKind) String() string {
	switch k {
	case RegionKernels:
		return "KERNELS"
	case RegionParallelized:
		return "PARALLEL (parallelized)"
	case RegionGangSingle:
		return "PARALLEL (gang-single)"
	case RegionData:
		return "DATA"
	}
	return "?"
}

// ClauseCode identifies an accelerator clause.
type ClauseCode int

const (
	// ClauseMap is a data motion clause; its kind is in Map.
	ClauseMap ClauseCode = iota
	// ClauseIf is an if(condition) clause.
	ClauseIf
	// ClauseNumGangs is num_gangs(expr).
	ClauseNumGangs
	// ClauseNumWorkers is num_workers(expr).
	ClauseNumWorkers
	// ClauseVectorLength is vector_length(expr).
	ClauseVectorLength
	// ClauseAuto requests parallelism analysis on a loop.
	ClauseAuto
	// ClauseIndependent asserts iteration independence.
	ClauseIndependent
	// ClauseSeq forces sequential execution of a loop.
	ClauseSeq
	// ClauseGang, ClauseWorker, and ClauseVector request the respective
	// parallelism level on a loop.
	ClauseGang
	ClauseWorker
	ClauseVector
)

// MapKind classifies a data motion clause.
type MapKind int

const (
	// MapAlloc allocates device memory without transfer.
	MapAlloc MapKind = iota
	// MapTo copies host to device on entry.
	MapTo
	// MapFrom copies device to host on exit.
	MapFrom
	// MapTofrom copies both ways.
	MapTofrom
	// MapForcePresent asserts device presence.
	MapForcePresent
	// MapForceTofrom is an implicitly added both-ways copy.
	MapForceTofrom
	// MapPointer maps a pointer's own value.
	MapPointer
	// MapToPset maps an array descriptor.
	MapToPset
	// MapFirstprivatePointer and MapFirstprivateReference map by-value
	// pointer and reference captures.
	MapFirstprivatePointer
	MapFirstprivateReference
)

var mapKindNames = map[MapKind]string{
	MapAlloc:                 "alloc",
	MapTo:                    "to",
	MapFrom:                  "from",
	MapTofrom:                "tofrom",
	MapForcePresent:          "force_present",
	MapForceTofrom:           "force_tofrom",
	MapPointer:               "pointer",
	MapToPset:                "to_pset",
	MapFirstprivatePointer:   "firstprivate_pointer",
	MapFirstprivateReference: "firstprivate_reference",
}

// String returns the lowercase spelling of k.
func (k MapKind) String() string {
	if s, ok := mapKindNames[k]; ok {
		return s
	}
	return "?"
}

// ParseMapKind parses a lowercase map-kind spelling, as used in
// configuration files.
func ParseMapKind(s string) (MapKind, error) {
	for k, name := range mapKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown map kind %q", s)
}

// A Clause is one accelerator clause on a region or loop node.
type Clause struct {
	Loc  scan.Locus
	Code ClauseCode

	// Map is the data motion kind of a ClauseMap clause.
	Map MapKind

	// Sym is the mapped or conditioned symbol, when the clause names
	// one.
	Sym *syms.Symbol

	// Expr is the clause argument: the condition of an if, the count of
	// num_gangs and friends.
	Expr *expr.Expr

	// Size is the mapped extent of a ClauseMap clause, when explicit.
	Size *expr.Expr
}

// Copy returns a deep copy of the clause with freshly owned
// expressions.
func (c *Clause) Copy() *Clause {
	d := *c
	d.Expr = c.Expr.Copy()
	d.Size = c.Size.Copy()
	return &d
}

// UnshareClauses deep-copies a clause sequence so that two region
// nodes never share expression trees.
func UnshareClauses(cs []*Clause) []*Clause {
	if cs == nil {
		return nil
	}
	out := make([]*Clause, len(cs))
	for i, c := range cs {
		out[i] = c.Copy()
	}
	return out
}
