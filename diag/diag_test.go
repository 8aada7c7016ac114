// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package diag

import (
	"strings"
	"testing"

	"github.com/grailbio/directive/internal/scan"
)

func TestReporter(t *testing.T) {
	var r Reporter
	if r.Count() != 0 || r.Err() != nil {
		t.Fatal("zero reporter not empty")
	}
	r.Errorf(scan.Locus{}, "first %s", "problem")
	r.Errorf(scan.Locus{}, "second problem")
	if got, want := r.Count(), 2; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	ds := r.Diagnostics()
	if ds[0].Message != "first problem" || ds[1].Message != "second problem" {
		t.Errorf("got %v", ds)
	}
}

func TestErr(t *testing.T) {
	var r Reporter
	r.Errorf(scan.Locus{}, "one")
	r.Errorf(scan.Locus{}, "two")
	err := r.Err()
	if err == nil {
		t.Fatal("got nil error")
	}
	lines := strings.Split(err.Error(), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %v lines, want 2", len(lines))
	}
	if !strings.HasSuffix(lines[0], "one") || !strings.HasSuffix(lines[1], "two") {
		t.Errorf("got %q", err.Error())
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Locus: scan.Locus{File: "t.f90", Line: 2, Column: 3}, Message: "oops"}
	if got, want := d.String(), "t.f90:2:3: oops"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
