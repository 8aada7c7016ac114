// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package clause

import (
	"testing"

	"github.com/grailbio/directive/expr"
	"github.com/grailbio/directive/syms"
)

func TestEmpty(t *testing.T) {
	c := new(Set)
	if !c.Empty() {
		t.Error("zero set not empty")
	}
	ns := syms.NewNamespace(nil)
	c.Append(ListPrivate, ns.Get("a"))
	if c.Empty() {
		t.Error("set with a private clause reports empty")
	}
	c2 := &Set{Collapse: 2}
	if c2.Empty() {
		t.Error("set with collapse reports empty")
	}
}

func TestListClassification(t *testing.T) {
	if !ListReductionPlus.Reduction() || !ListReductionIeor.Reduction() {
		t.Error("reduction slots misclassified")
	}
	if ListLinear.Reduction() {
		t.Error("linear classified as reduction")
	}
	if got, want := ListFirstprivate.Name(), "FIRSTPRIVATE"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := ListReductionMax.Name(), "REDUCTION"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := ListDependOut.Name(), "DEPEND"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDigest(t *testing.T) {
	ns := syms.NewNamespace(nil)
	a := ns.Get("a")
	mk := func() *Set {
		c := new(Set)
		c.Append(ListShared, a)
		c.NumThreads = expr.NewInt(4)
		return c
	}
	if mk().Digest() != mk().Digest() {
		t.Error("identical sets digest differently")
	}
	other := mk()
	other.Collapse = 2
	if mk().Digest() == other.Digest() {
		t.Error("different sets digest identically")
	}
	shuffled := new(Set)
	shuffled.NumThreads = expr.NewInt(4)
	shuffled.Append(ListPrivate, a)
	if mk().Digest() == shuffled.Digest() {
		t.Error("list category ignored by digest")
	}
}
