// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package expr

import (
	"encoding/binary"
	"io"

	"github.com/grailbio/base/digest"
	"github.com/grailbio/directive"
)

// Digest computes an identifier for the expression tree. Two
// structurally identical expressions over the same symbols produce the
// same digest, so directive attachments can be deduplicated by
// downstream tooling.
func (e *Expr) Digest() digest.Digest {
	w := directive.Digester.NewWriter()
	e.WriteDigest(w)
	return w.Digest()
}

// WriteDigest writes the digestible material of e to w. Nil
// expressions contribute a distinguished marker so that absent and
// present subexpressions never collide.
func (e *Expr) WriteDigest(w io.Writer) {
	e.digest(w)
}

func (e *Expr) digest(w io.Writer) {
	if e == nil {
		writeN(w, -1)
		return
	}
	writeN(w, int(e.Kind))
	switch e.Kind {
	case Constant:
		writeN(w, int(e.TS.Basic))
		writeN(w, int(e.Int))
	case Variable:
		io.WriteString(w, e.Sym.Name)
		for _, r := range e.Refs {
			writeN(w, int(r.Kind))
			for _, d := range r.Dims {
				writeN(w, int(d.Type))
				d.Start.digest(w)
				d.End.digest(w)
				d.Stride.digest(w)
			}
		}
	case Binop:
		io.WriteString(w, e.Op.String())
		e.Left.digest(w)
		e.Right.digest(w)
	case Call:
		writeN(w, int(e.Fn))
		for _, a := range e.Args {
			a.digest(w)
		}
	}
}

func writeN(w io.Writer, n int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(int64(n)))
	w.Write(b[:])
}
