// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package oacc

import (
	"fmt"

	"github.com/grailbio/directive/stmt"
	yaml "gopkg.in/yaml.v2"
)

// Config configures the kernels decomposition pass. The zero value
// selects the default behavior.
type Config struct {
	// NoPropagate lists map kinds, by their lowercase spellings, whose
	// clauses stay on the inner compute regions instead of being hoisted
	// to the enclosing data region. A nil list selects the default set;
	// an explicitly empty list hoists everything.
	NoPropagate []string `yaml:"no_propagate"`
}

// defaultNoPropagate holds the map kinds whose hoisting is known to
// break later processing.
var defaultNoPropagate = []string{
	"pointer",
	"to_pset",
	"force_tofrom",
	"firstprivate_pointer",
	"firstprivate_reference",
}

// DefaultConfig returns a config with the default no-propagate set
// spelled out.
func DefaultConfig() Config {
	return Config{NoPropagate: append([]string{}, defaultNoPropagate...)}
}

// ParseConfig parses a YAML configuration document.
func ParseConfig(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("oacc: parse config: %v", err)
	}
	return c, nil
}

// exclusions resolves the no-propagate spellings into a map-kind set.
func (c Config) exclusions() (map[stmt.MapKind]bool, error) {
	names := c.NoPropagate
	if names == nil {
		names = defaultNoPropagate
	}
	m := make(map[stmt.MapKind]bool, len(names))
	for _, name := range names {
		k, err := stmt.ParseMapKind(name)
		if err != nil {
			return nil, fmt.Errorf("oacc: no_propagate: %v", err)
		}
		m[k] = true
	}
	return m, nil
}
