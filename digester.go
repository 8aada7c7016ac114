// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package directive

import (
	"crypto"
	_ "crypto/sha256"

	"github.com/grailbio/base/digest"
)

// Digester is the digester used to compute directive and clause-set
// digests. We use a SHA256 digest here as in the rest of GRAIL.
var Digester = digest.Digester(crypto.SHA256)
