package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Electron-Labs/eth-trie-go/store"
)

// EmptyRootHash is the digest of the empty trie: the keccak of the RLP
// encoding of an empty byte string, i.e. keccak(0x80).
var EmptyRootHash = crypto.Keccak256Hash(encodeEmpty())

// Trie is an authenticated, persistent key-value map realized as a
// Modified Merkle Patricia Trie. A Trie is not safe for concurrent use;
// callers needing concurrent readers should take their own external lock or
// clone the backing store's view (see spec.md §5).
type Trie struct {
	store store.Store
	root  Node

	// Auxiliary commit state, valid between commits. cache holds bytes for
	// nodes hashed since the last commit, keyed by digest. genKeys is the
	// set of digests freshly minted this pass. passingKeys is the set of
	// digests of Hash placeholders that a mutation (insert/delete/degenerate)
	// expanded and discarded in favor of their resolved form since the last
	// commit — a plain read never adds to it. At commit time, passingKeys
	// minus genKeys are the now-unreachable nodes to delete.
	cache       map[common.Hash][]byte
	genKeys     map[common.Hash]struct{}
	passingKeys map[common.Hash]struct{}

	metrics *Metrics
}

// New returns an empty trie backed by s.
func New(s store.Store) *Trie {
	return &Trie{
		store:       s,
		root:        nil,
		cache:       make(map[common.Hash][]byte),
		genKeys:     make(map[common.Hash]struct{}),
		passingKeys: make(map[common.Hash]struct{}),
	}
}

// FromRootHash opens a trie at a previously committed root. It returns
// ErrInvalidStateRoot if root is not the empty root and is not present in s.
func FromRootHash(s store.Store, root common.Hash) (*Trie, error) {
	t := New(s)
	if root == EmptyRootHash || root == (common.Hash{}) {
		return t, nil
	}
	t.root = hashNode(root)
	if _, err := t.store.Get(root[:]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidStateRoot
		}
		return nil, dbErrorf(err, "loading root %x", root)
	}
	return t, nil
}

// SetMetrics attaches an optional Prometheus collector. Passing nil detaches
// it. Unattached, commits incur no metrics overhead beyond a pointer check.
func (t *Trie) SetMetrics(m *Metrics) { t.metrics = m }

// Get returns the value stored under key, or (nil, nil) if absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	full := PathFromKey(key)
	v, _, newRoot, err := t.get(t.root, full, 0)
	if err != nil {
		if m, ok := asMissingNode(err); ok {
			return nil, m.withKey(key)
		}
		return nil, err
	}
	t.root = newRoot
	return v, nil
}

// Contains reports whether key is present.
func (t *Trie) Contains(key []byte) (bool, error) {
	v, err := t.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// atTerminator reports whether, after consuming m nibbles of p, the
// remaining suffix denotes the value slot: either fully consumed (no
// terminator present) or exactly the trailing terminator nibble.
func atTerminator(p Path, m int) bool {
	rem := p.Offset(m)
	return rem.IsEmpty() || rem.At(0) == terminatorNibble
}

// get walks n looking for full.Offset(offset). offset is threaded through
// (rather than just slicing full down to a bare suffix) so that a
// MissingTrieNodeError raised along the way can report exactly the nibbles
// traversed before the failure.
func (t *Trie) get(n Node, full Path, offset int) (value []byte, found bool, resolved Node, err error) {
	path := full.Offset(offset)
	switch nd := n.(type) {
	case nil:
		return nil, false, nil, nil

	case *leafNode:
		if nd.Key.CommonPrefix(path) == nd.Key.Len() && nd.Key.Len() == path.Len() {
			return nd.Val, true, nd, nil
		}
		return nil, false, nd, nil

	case *extensionNode:
		m := nd.Key.CommonPrefix(path)
		if m < nd.Key.Len() {
			return nil, false, nd, nil
		}
		v, found, child, err := t.get(nd.Child, full, offset+m)
		if err != nil {
			return nil, false, nil, err
		}
		if child != nd.Child {
			clone := nd.copy()
			clone.Child = child
			nd = clone
		}
		return v, found, nd, nil

	case *branchNode:
		if path.IsEmpty() || path.At(0) == terminatorNibble {
			return nd.Value, nd.Value != nil, nd, nil
		}
		i := path.At(0)
		v, found, child, err := t.get(nd.Children[i], full, offset+1)
		if err != nil {
			return nil, false, nil, err
		}
		if child != nd.Children[i] {
			clone := nd.copy()
			clone.Children[i] = child
			nd = clone
		}
		return v, found, nd, nil

	case hashNode:
		resolved, err := t.recover(common.Hash(nd))
		if err != nil {
			return nil, false, nil, t.withTraversed(err, full, offset)
		}
		return t.get(resolved, full, offset)

	default:
		return nil, false, nil, fmt.Errorf("trie: unknown node type %T", n)
	}
}

// withTraversed attaches the nibbles consumed so far to a MissingTrieNodeError,
// leaving any other error untouched.
func (t *Trie) withTraversed(err error, full Path, offset int) error {
	if m, ok := asMissingNode(err); ok {
		traversed := full.Slice(0, offset).Clone()
		m.Traversed = &traversed
	}
	return err
}

// recover resolves a hash placeholder by loading and decoding it from the
// store. It has no bookkeeping side effects: passingKeys is populated only
// at the mutation call sites (insert/delete/degenerate) that go on to
// replace the Hash placeholder with its resolved form, never by a plain
// read (Get, GetPath, the iterator) or by the post-commit root reload —
// otherwise a subsequent commit could prune a node a mere read happened to
// pass through.
func (t *Trie) recover(digest common.Hash) (Node, error) {
	if digest == EmptyRootHash {
		return nil, nil
	}
	data, err := t.store.Get(digest[:])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &MissingTrieNodeError{Digest: digest, RootHash: t.currentRootGuess()}
		}
		return nil, dbErrorf(err, "loading node %x", digest)
	}
	n, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// markPassing records digest as expanded-since-last-commit, for pruneStale
// to weigh against genKeys. Called only from the mutation paths that
// actually discard the Hash placeholder in favor of its resolved form.
func (t *Trie) markPassing(digest common.Hash) {
	t.passingKeys[digest] = struct{}{}
}

// currentRootGuess best-efforts a root hash for error reporting without
// forcing an unwanted commit.
func (t *Trie) currentRootGuess() common.Hash {
	if hn, ok := t.root.(hashNode); ok {
		return common.Hash(hn)
	}
	return common.Hash{}
}

// Insert sets key to value. An empty value is treated as a removal, per the
// Ethereum convention that a value-less entry does not exist.
func (t *Trie) Insert(key, value []byte) error {
	if len(value) == 0 {
		_, err := t.Remove(key)
		return err
	}
	full := PathFromKey(key)
	newRoot, err := t.insert(t.root, full, 0, value)
	if err != nil {
		if m, ok := asMissingNode(err); ok {
			return m.withKey(key)
		}
		return err
	}
	t.root = newRoot
	return nil
}

func (t *Trie) insert(n Node, full Path, offset int, value []byte) (Node, error) {
	path := full.Offset(offset)
	switch nd := n.(type) {
	case nil:
		return &leafNode{Key: path, Val: value, flags: nodeFlag{dirty: true}}, nil

	case *leafNode:
		m := nd.Key.CommonPrefix(path)
		if m == nd.Key.Len() && m == path.Len() {
			return &leafNode{Key: path, Val: value, flags: nodeFlag{dirty: true}}, nil
		}
		branch := &branchNode{flags: nodeFlag{dirty: true}}
		if atTerminator(nd.Key, m) {
			branch.Value = nd.Val
		} else {
			branch.Children[nd.Key.At(m)] = &leafNode{Key: nd.Key.Offset(m + 1), Val: nd.Val, flags: nodeFlag{dirty: true}}
		}
		if atTerminator(path, m) {
			branch.Value = value
		} else {
			branch.Children[path.At(m)] = &leafNode{Key: path.Offset(m + 1), Val: value, flags: nodeFlag{dirty: true}}
		}
		if m == 0 {
			return branch, nil
		}
		return &extensionNode{Key: path.Slice(0, m), Child: branch, flags: nodeFlag{dirty: true}}, nil

	case *extensionNode:
		m := nd.Key.CommonPrefix(path)
		if m == nd.Key.Len() {
			child, err := t.insert(nd.Child, full, offset+m, value)
			if err != nil {
				return nil, err
			}
			return &extensionNode{Key: nd.Key, Child: child, flags: nodeFlag{dirty: true}}, nil
		}
		branch := &branchNode{flags: nodeFlag{dirty: true}}
		if m+1 == nd.Key.Len() {
			branch.Children[nd.Key.At(m)] = nd.Child
		} else {
			branch.Children[nd.Key.At(m)] = &extensionNode{Key: nd.Key.Offset(m + 1), Child: nd.Child, flags: nodeFlag{dirty: true}}
		}
		if atTerminator(path, m) {
			branch.Value = value
		} else {
			branch.Children[path.At(m)] = &leafNode{Key: path.Offset(m + 1), Val: value, flags: nodeFlag{dirty: true}}
		}
		if m == 0 {
			return branch, nil
		}
		return &extensionNode{Key: path.Slice(0, m), Child: branch, flags: nodeFlag{dirty: true}}, nil

	case *branchNode:
		clone := nd.copy()
		clone.flags = nodeFlag{dirty: true}
		if path.IsEmpty() || path.At(0) == terminatorNibble {
			clone.Value = value
			return clone, nil
		}
		i := path.At(0)
		child, err := t.insert(nd.Children[i], full, offset+1, value)
		if err != nil {
			return nil, err
		}
		clone.Children[i] = child
		return clone, nil

	case hashNode:
		resolved, err := t.recover(common.Hash(nd))
		if err != nil {
			return nil, t.withTraversed(err, full, offset)
		}
		t.markPassing(common.Hash(nd))
		return t.insert(resolved, full, offset, value)

	default:
		return nil, fmt.Errorf("trie: unknown node type %T", n)
	}
}

// Remove deletes key, reporting whether it was present.
func (t *Trie) Remove(key []byte) (bool, error) {
	full := PathFromKey(key)
	newRoot, removed, err := t.delete(t.root, full, 0)
	if err != nil {
		if m, ok := asMissingNode(err); ok {
			return false, m.withKey(key)
		}
		return false, err
	}
	t.root = newRoot
	return removed, nil
}

func (t *Trie) delete(n Node, full Path, offset int) (Node, bool, error) {
	path := full.Offset(offset)
	switch nd := n.(type) {
	case nil:
		return nil, false, nil

	case *leafNode:
		if nd.Key.CommonPrefix(path) == nd.Key.Len() && nd.Key.Len() == path.Len() {
			return nil, true, nil
		}
		return nd, false, nil

	case *extensionNode:
		m := nd.Key.CommonPrefix(path)
		if m < nd.Key.Len() {
			return nd, false, nil
		}
		child, removed, err := t.delete(nd.Child, full, offset+m)
		if err != nil {
			return nil, false, err
		}
		if !removed {
			return nd, false, nil
		}
		if child == nil {
			return nil, true, nil
		}
		merged, err := t.degenerate(&extensionNode{Key: nd.Key, Child: child, flags: nodeFlag{dirty: true}})
		if err != nil {
			return nil, false, err
		}
		return merged, true, nil

	case *branchNode:
		if path.IsEmpty() || path.At(0) == terminatorNibble {
			if nd.Value == nil {
				return nd, false, nil
			}
			clone := nd.copy()
			clone.flags = nodeFlag{dirty: true}
			clone.Value = nil
			merged, err := t.degenerate(clone)
			if err != nil {
				return nil, false, err
			}
			return merged, true, nil
		}
		i := path.At(0)
		child, removed, err := t.delete(nd.Children[i], full, offset+1)
		if err != nil {
			return nil, false, err
		}
		if !removed {
			return nd, false, nil
		}
		clone := nd.copy()
		clone.flags = nodeFlag{dirty: true}
		clone.Children[i] = child
		merged, err := t.degenerate(clone)
		if err != nil {
			return nil, false, err
		}
		return merged, true, nil

	case hashNode:
		resolved, err := t.recover(common.Hash(nd))
		if err != nil {
			return nil, false, t.withTraversed(err, full, offset)
		}
		t.markPassing(common.Hash(nd))
		return t.delete(resolved, full, offset)

	default:
		return nil, false, fmt.Errorf("trie: unknown node type %T", n)
	}
}

// degenerate restores canonical form after a deletion removes a branch's
// value or one of its children: a branch with no value and zero occupied
// children collapses to Empty (degenerate returns nil); a branch with a
// value and no children becomes a Leaf; one with no value and exactly one occupied child
// folds to a Leaf or Extension; an Extension wrapping another Extension or
// a Leaf merges prefixes; an Extension wrapping a Hash placeholder resolves
// it and retries. Errors raised from within degenerate carry no Traversed
// path — degenerate operates on an already-descended subtree and keeps no
// path offset of its own.
func (t *Trie) degenerate(n Node) (Node, error) {
	switch nd := n.(type) {
	case *branchNode:
		occupied := nd.occupiedSlots()
		if nd.Value != nil {
			if len(occupied) == 0 {
				return &leafNode{Key: PathFromNibbles([]byte{terminatorNibble}), Val: nd.Value, flags: nodeFlag{dirty: true}}, nil
			}
			return nd, nil
		}
		switch len(occupied) {
		case 0:
			return nil, nil
		case 1:
			i := occupied[0]
			child := nd.Children[i]
			prefix := PathFromNibbles([]byte{byte(i)})
			return t.degenerate(&extensionNode{Key: prefix, Child: child, flags: nodeFlag{dirty: true}})
		default:
			return nd, nil
		}

	case *extensionNode:
		switch child := nd.Child.(type) {
		case *extensionNode:
			return &extensionNode{Key: nd.Key.Join(child.Key), Child: child.Child, flags: nodeFlag{dirty: true}}, nil
		case *leafNode:
			return &leafNode{Key: nd.Key.Join(child.Key), Val: child.Val, flags: nodeFlag{dirty: true}}, nil
		case hashNode:
			resolved, err := t.recover(common.Hash(child))
			if err != nil {
				return nil, err
			}
			t.markPassing(common.Hash(child))
			nd.Child = resolved
			return t.degenerate(nd)
		default:
			return nd, nil
		}

	default:
		return n, nil
	}
}
