package trie

import "github.com/ethereum/go-ethereum/common"

// Node is the trie node algebra. Five variants implement it:
//   - nil (the Go value, not a type) — Empty, the absence of a node.
//   - *leafNode — a terminal key suffix and its value.
//   - *extensionNode — a shared path prefix wrapping a single child.
//   - *branchNode — a 16-way fan-out, with an optional value of its own.
//   - hashNode — a lazy digest reference to a node resolved on demand from
//     the backing store.
//
// Leaf/extension/branch carry a nodeFlag; mutations mark the nodes they
// create dirty, but no code path stores a hash into it and the committer
// does not consult it: every Commit re-encodes each in-memory node.
type Node interface {
	cachedHash() (common.Hash, bool)
}

type nodeFlag struct {
	hash  common.Hash
	dirty bool
}

type leafNode struct {
	Key   Path
	Val   []byte
	flags nodeFlag
}

type extensionNode struct {
	Key   Path
	Child Node
	flags nodeFlag
}

type branchNode struct {
	Children [16]Node
	Value    []byte
	flags    nodeFlag
}

// hashNode is a 32-byte digest standing in for a node not yet resolved from
// the store. It always reports itself as already hashed and clean.
type hashNode common.Hash

func (n *leafNode) cachedHash() (common.Hash, bool) {
	return n.flags.hash, !n.flags.dirty && n.flags.hash != (common.Hash{})
}

func (n *extensionNode) cachedHash() (common.Hash, bool) {
	return n.flags.hash, !n.flags.dirty && n.flags.hash != (common.Hash{})
}

func (n *branchNode) cachedHash() (common.Hash, bool) {
	return n.flags.hash, !n.flags.dirty && n.flags.hash != (common.Hash{})
}

func (n hashNode) cachedHash() (common.Hash, bool) { return common.Hash(n), true }

func (n *leafNode) copy() *leafNode {
	c := *n
	return &c
}

func (n *extensionNode) copy() *extensionNode {
	c := *n
	return &c
}

func (n *branchNode) copy() *branchNode {
	c := *n
	return &c
}

// occupiedSlots returns the indices of non-nil children of a branch node.
func (n *branchNode) occupiedSlots() []int {
	var out []int
	for i, c := range n.Children {
		if c != nil {
			out = append(out, i)
		}
	}
	return out
}
