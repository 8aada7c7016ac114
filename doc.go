// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package directive implements the front end for structured compiler
// directives: OpenMP directive clause parsing and semantic validation,
// and decomposition of OpenACC kernels regions into sequences of
// finer-grained parallel and data regions.
//
// The module is organized as a set of passes over a small program
// representation. Package omp matches directive clause text into clause
// sets (package clause) attached to directive statements (package stmt),
// then cross-validates the clause sets against the symbol table
// (package syms). Package oacc rewrites kernels-region statement trees.
// Diagnostics accumulate in package diag; fatal parse failures
// propagate as distinguished match results from package internal/scan.
package directive
