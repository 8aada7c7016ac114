// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package oacc

import (
	"testing"

	"github.com/grailbio/directive/stmt"
)

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte("no_propagate:\n  - pointer\n  - to_pset\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(c.NoPropagate), 2; got != want {
		t.Fatalf("got %v entries, want %v", got, want)
	}
	m, err := c.exclusions()
	if err != nil {
		t.Fatal(err)
	}
	if !m[stmt.MapPointer] || !m[stmt.MapToPset] || m[stmt.MapTofrom] {
		t.Errorf("got exclusions %v", m)
	}
}

func TestParseConfigBadYAML(t *testing.T) {
	if _, err := ParseConfig([]byte(":\n:")); err == nil {
		t.Fatal("malformed document accepted")
	}
}

func TestDefaultExclusions(t *testing.T) {
	m, err := Config{}.exclusions()
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []stmt.MapKind{
		stmt.MapPointer, stmt.MapToPset, stmt.MapForceTofrom,
		stmt.MapFirstprivatePointer, stmt.MapFirstprivateReference,
	} {
		if !m[k] {
			t.Errorf("%v not excluded by default", k)
		}
	}
	if m[stmt.MapTofrom] || m[stmt.MapAlloc] {
		t.Errorf("data clauses excluded by default: %v", m)
	}
}

func TestEmptyListHoistsEverything(t *testing.T) {
	m, err := Config{NoPropagate: []string{}}.exclusions()
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 0 {
		t.Errorf("got %v, want no exclusions", m)
	}
}

func TestUnknownMapKind(t *testing.T) {
	if _, err := (Config{NoPropagate: []string{"sideways"}}).exclusions(); err == nil {
		t.Fatal("unknown map kind accepted")
	}
}

func TestDefaultConfigRoundTrips(t *testing.T) {
	def := DefaultConfig()
	m1, err := def.exclusions()
	if err != nil {
		t.Fatal(err)
	}
	m2, err := Config{}.exclusions()
	if err != nil {
		t.Fatal(err)
	}
	if len(m1) != len(m2) {
		t.Fatalf("got %v, want %v", m1, m2)
	}
	for k := range m2 {
		if !m1[k] {
			t.Errorf("%v missing from DefaultConfig", k)
		}
	}
}
