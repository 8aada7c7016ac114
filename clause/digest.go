// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package clause

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/directive"
)

// Digest computes an identifier for the clause set. Two sets with the
// same clauses over the same symbols produce the same digest, so
// declare-simd records and directive attachments can be deduplicated
// by downstream tooling.
func (c *Set) Digest() digest.Digest {
	w := directive.Digester.NewWriter()
	c.WriteDigest(w)
	return w.Digest()
}

// WriteDigest writes the digestible material of c to w.
func (c *Set) WriteDigest(w io.Writer) {
	c.If.WriteDigest(w)
	c.Final.WriteDigest(w)
	c.NumThreads.WriteDigest(w)
	c.ChunkSize.WriteDigest(w)
	c.Safelen.WriteDigest(w)
	c.Simdlen.WriteDigest(w)
	for l := List(0); l < NumLists; l++ {
		writeN(w, len(c.Lists[l]))
		for _, it := range c.Lists[l] {
			io.WriteString(w, it.Sym.Name)
			it.Expr.WriteDigest(w)
		}
	}
	writeN(w, int(c.Default))
	writeN(w, int(c.Sched))
	writeN(w, int(c.ProcBind))
	writeN(w, int(c.Cancel))
	writeN(w, c.Collapse)
	writeBool(w, c.Ordered)
	writeBool(w, c.Untied)
	writeBool(w, c.Mergeable)
	writeBool(w, c.Inbranch)
	writeBool(w, c.Notinbranch)
}

func writeN(w io.Writer, n int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(int64(n)))
	w.Write(b[:])
}

func writeBool(w io.Writer, v bool) {
	if v {
		writeN(w, 1)
	} else {
		writeN(w, 0)
	}
}
