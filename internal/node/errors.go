package node

import "errors"

// Error kinds surfaced by the node manager (spec §7).
var (
	ErrWrongKind    = errors.New("node: address holds the wrong node kind")
	ErrLoopDetected = errors.New("node: sibling or child chain loop detected")
	ErrNoMatch      = errors.New("node: no matching service/login found")
	ErrNoProfile    = errors.New("node: user has no profile")
)

// maxChainWalk bounds every sibling/child traversal so a corrupted
// next-pointer chain can never spin the dispatch loop forever (spec
// §8 I4: "cyclic or self-referential next pointers must not hang the
// traversal").
const maxChainWalk = 4096
