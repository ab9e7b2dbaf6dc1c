package trie

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// keccakPool lets each keccak call borrow and return a pooled hashing state
// instead of allocating a new one per node, mirroring go-ethereum's own
// committer.
var keccakPool = sync.Pool{
	New: func() interface{} { return sha3.NewLegacyKeccak256().(crypto.KeccakState) },
}

func keccak(data []byte) common.Hash {
	h := keccakPool.Get().(crypto.KeccakState)
	defer keccakPool.Put(h)
	h.Reset()
	h.Write(data)
	var out common.Hash
	h.Read(out[:])
	return out
}

// Commit flushes all nodes hashed since the last commit to the backing
// store, deletes nodes that became unreachable (the Hash placeholders
// resolved — and not re-derived — since the last commit), and returns the
// new root digest. RootHash is an alias kept for readability at call sites
// that only want the digest.
func (t *Trie) Commit() (common.Hash, error) {
	started := time.Now()

	var rootHash common.Hash
	switch root := t.root.(type) {
	case hashNode:
		rootHash = common.Hash(root)
	default:
		// Falls through for both a concrete node and the nil (Empty) root:
		// encodeRaw(nil) returns the canonical RLP_NULL bytes, so an empty
		// trie still flushes a (keccak(RLP_NULL), RLP_NULL) entry to the
		// store like any other root, instead of only returning the digest.
		enc, err := t.encodeRaw(t.root)
		if err != nil {
			return common.Hash{}, err
		}
		rootHash = keccak(enc)
		t.cache[rootHash] = enc
		if len(enc) >= 32 {
			t.genKeys[rootHash] = struct{}{}
		}
	}

	nodesWritten, bytesFlushed, err := t.flushCache()
	if err != nil {
		return common.Hash{}, err
	}
	nodesDeleted, err := t.pruneStale()
	if err != nil {
		return common.Hash{}, err
	}

	t.cache = make(map[common.Hash][]byte)
	t.genKeys = make(map[common.Hash]struct{})
	t.passingKeys = make(map[common.Hash]struct{})

	if t.root == nil {
		// nothing to reload
	} else {
		resolved, err := t.recover(rootHash)
		if err != nil {
			panic(fmt.Sprintf("trie: root %x just committed is unreadable: %v", rootHash, err))
		}
		t.root = resolved
	}

	if t.metrics != nil {
		t.metrics.observeCommit(nodesWritten, bytesFlushed, nodesDeleted, time.Since(started))
	}
	return rootHash, nil
}

// RootHash is an alias for Commit, named to match the external API
// described for the trie capability.
func (t *Trie) RootHash() (common.Hash, error) { return t.Commit() }

func (t *Trie) flushCache() (count int, bytes int, err error) {
	if len(t.cache) == 0 {
		return 0, 0, nil
	}
	keys := make([][]byte, 0, len(t.cache))
	values := make([][]byte, 0, len(t.cache))
	for h, data := range t.cache {
		h := h
		keys = append(keys, h[:])
		values = append(values, data)
		bytes += len(data)
	}
	if err := t.store.InsertBatch(keys, values); err != nil {
		return 0, 0, dbErrorf(err, "flushing %d nodes", len(keys))
	}
	return len(keys), bytes, nil
}

func (t *Trie) pruneStale() (int, error) {
	var stale [][]byte
	for h := range t.passingKeys {
		if _, kept := t.genKeys[h]; !kept {
			h := h
			stale = append(stale, h[:])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := t.store.RemoveBatch(stale); err != nil {
		return 0, dbErrorf(err, "removing %d stale nodes", len(stale))
	}
	return len(stale), nil
}

// encodeRaw produces the canonical RLP bytes for a node, recursively
// resolving (and, when large enough, hashing and caching) its children.
func (t *Trie) encodeRaw(n Node) ([]byte, error) {
	switch nd := n.(type) {
	case nil:
		return encodeEmpty(), nil
	case *leafNode:
		return encodeLeaf(nd.Key, nd.Val)
	case *extensionNode:
		ref, err := t.childRef(nd.Child)
		if err != nil {
			return nil, err
		}
		return encodeExtension(nd.Key, ref)
	case *branchNode:
		var refs [16]nodeRef
		for i, c := range nd.Children {
			ref, err := t.childRef(c)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		return encodeBranch(refs, nd.Value)
	case hashNode:
		return nil, fmt.Errorf("trie: cannot re-encode a hash reference node directly")
	default:
		return nil, fmt.Errorf("trie: unknown node type %T", n)
	}
}

// childRef resolves a child into its RLP reference form. A Hash child
// returns its own digest directly — it is already committed, so re-storing
// it would double count it in cache/genKeys. Any other child is encoded
// recursively; if the encoding is under 32 bytes it is inlined, otherwise
// it is hashed and recorded as newly generated for this pass.
func (t *Trie) childRef(n Node) (nodeRef, error) {
	if n == nil {
		return nodeRef{raw: emptyStringRLP}, nil
	}
	if hn, ok := n.(hashNode); ok {
		b, err := rlpEncodeHash(common.Hash(hn))
		if err != nil {
			return nodeRef{}, err
		}
		return nodeRef{raw: b}, nil
	}
	enc, err := t.encodeRaw(n)
	if err != nil {
		return nodeRef{}, err
	}
	if len(enc) < 32 {
		return nodeRef{raw: enc}, nil
	}
	hash := keccak(enc)
	t.cache[hash] = enc
	t.genKeys[hash] = struct{}{}
	b, err := rlpEncodeHash(hash)
	if err != nil {
		return nodeRef{}, err
	}
	return nodeRef{raw: b}, nil
}
