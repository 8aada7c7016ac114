// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Dircheck scans Fortran source files for OpenMP directive lines,
// parses them, and cross-validates their clause sets, reporting
// diagnostics with source positions. Files are scanned concurrently
// and resolved as independent compilation units.
package main

import (
	"flag"
	"fmt"
	golog "log"
	"os"
	"sort"

	"github.com/grailbio/directive/diag"
	"github.com/grailbio/directive/internal/scan"
	"github.com/grailbio/directive/log"
	"github.com/grailbio/directive/oacc"
	"github.com/grailbio/directive/omp"
	"github.com/grailbio/directive/syms"
	"golang.org/x/sync/errgroup"
)

var (
	debug      = flag.Bool("debug", false, "enable debug logging")
	configPath = flag.String("config", "", "YAML configuration file for the kernels decomposition pass")
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: dircheck file.f90 ...

Dircheck scans the named source files for OpenMP directive lines
("!$omp ..."), parses them, and validates their clause sets. Each
diagnostic is printed with its source position; dircheck exits with a
nonzero status if any file had diagnostics.
`)
	flag.PrintDefaults()
	os.Exit(2)
}

type fileReport struct {
	path  string
	diags []diag.Diagnostic
}

func main() {
	golog.SetFlags(0)
	golog.SetPrefix("dircheck: ")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
	}

	level := log.InfoLevel
	if *debug {
		level = log.DebugLevel
	}
	lg := log.New(golog.New(os.Stderr, "", 0), level)

	config := oacc.DefaultConfig()
	if *configPath != "" {
		b, err := os.ReadFile(*configPath)
		if err != nil {
			golog.Fatal(err)
		}
		config, err = oacc.ParseConfig(b)
		if err != nil {
			golog.Fatal(err)
		}
	}

	paths := flag.Args()
	units := make([]*omp.Unit, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			unit, err := scanFile(path, lg)
			if err != nil {
				return err
			}
			units[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		golog.Fatal(err)
	}

	if err := omp.ResolveUnits(units, lg); err != nil {
		golog.Fatal(err)
	}

	// The decomposition pass runs over each unit's statements; directive
	// lines alone carry no kernels regions, but a bad configuration
	// should still be rejected.
	for i, path := range paths {
		pass := &oacc.Pass{Config: config, Log: lg}
		if err := pass.Transform(units[i].Nodes); err != nil {
			golog.Fatalf("%s: %v", path, err)
		}
	}

	var reports []fileReport
	for i, path := range paths {
		if ds := units[i].Diag.Diagnostics(); len(ds) > 0 {
			reports = append(reports, fileReport{path, ds})
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].path < reports[j].path })

	n := 0
	for _, r := range reports {
		for _, d := range r.diags {
			fmt.Println(d)
			n++
		}
	}
	if n > 0 {
		golog.Fatalf("%d diagnostics", n)
	}
}

// scanFile parses the directive lines of one source file into a
// compilation unit. Non-directive lines are skipped; a malformed
// directive line lands on the unit's reporter and scanning continues
// with the next line.
func scanFile(path string, lg *log.Logger) (*omp.Unit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ns := syms.NewNamespace(nil)
	rep := new(diag.Reporter)
	s := scan.New(path, string(b))
	p := &omp.Parser{S: s, NS: ns, Diag: rep, Log: lg}
	unit := &omp.Unit{NS: ns, Diag: rep}
	for {
		n, m := p.Directive()
		if m == scan.Yes {
			unit.Nodes = append(unit.Nodes, n)
			continue
		}
		if s.SkipLine() != scan.Yes {
			break
		}
	}
	unit.DeclareSimd = p.DeclareSimd
	return unit, nil
}
