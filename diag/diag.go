// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package diag implements positioned diagnostic accumulation for the
// directive passes. Semantic violations are recoverable: a pass
// reports each one as it is found and keeps going, maximizing the
// diagnostic yield of a single run. A Reporter collects them in order;
// the caller decides whether any were fatal to the larger compilation.
package diag

import (
	"bytes"
	"fmt"

	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/log"
)

// A Diagnostic is a message attached to a source position.
type Diagnostic struct {
	scan.Locus
	Message string
}

// String renders the diagnostic with its position.
func (d Diagnostic) String() string {
	return d.Locus.String() + ": " + d.Message
}

// A Reporter accumulates diagnostics. The zero Reporter is ready to
// use. A Reporter is not safe for concurrent use; parallel resolution
// gives each unit its own.
type Reporter struct {
	// Log, when set, additionally publishes each diagnostic at
	// ErrorLevel as it is reported.
	Log *log.Logger

	diags []Diagnostic
}

// Errorf reports a formatted diagnostic at loc.
func (r *Reporter) Errorf(loc scan.Locus, format string, args ...interface{}) {
	d := Diagnostic{Locus: loc, Message: fmt.Sprintf(format, args...)}
	r.diags = append(r.diags, d)
	r.Log.Errorf("%s", d)
}

// Diagnostics returns the accumulated diagnostics in report order.
func (r *Reporter) Diagnostics() []Diagnostic {
	return r.diags
}

// Count returns the number of accumulated diagnostics.
func (r *Reporter) Count() int { return len(r.diags) }

// Err returns nil when no diagnostics were reported, and otherwise an
// error rendering all of them, one per line.
func (r *Reporter) Err() error {
	if len(r.diags) == 0 {
		return nil
	}
	b := new(bytes.Buffer)
	for i, d := range r.diags {
		b.WriteString(d.String())
		if i != len(r.diags)-1 {
			b.WriteString("\n")
		}
	}
	return diagError(b.String())
}

type diagError string

func (e diagError) Error() string { return string(e) }
