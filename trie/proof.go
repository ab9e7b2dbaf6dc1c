package trie

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Electron-Labs/eth-trie-go/store"
)

// GetPath returns the sequence of nodes visited from the root down to the
// point key's lookup resolves at, root first. It is the building block
// behind GetProof, exposed on its own so proof construction and path
// resolution can be verified independently of RLP encoding.
func (t *Trie) GetPath(key []byte) ([]Node, error) {
	full := PathFromKey(key)
	path, err := t.getPath(t.root, full, 0, nil)
	if err != nil {
		if m, ok := asMissingNode(err); ok {
			return nil, m.withKey(key)
		}
		return nil, err
	}
	return path, nil
}

func (t *Trie) getPath(n Node, full Path, offset int, acc []Node) ([]Node, error) {
	path := full.Offset(offset)
	switch nd := n.(type) {
	case nil:
		return acc, nil

	case *leafNode:
		return append(acc, nd), nil

	case *extensionNode:
		acc = append(acc, nd)
		m := nd.Key.CommonPrefix(path)
		if m < nd.Key.Len() {
			return acc, nil
		}
		return t.getPath(nd.Child, full, offset+m, acc)

	case *branchNode:
		acc = append(acc, nd)
		if path.IsEmpty() || path.At(0) == terminatorNibble {
			return acc, nil
		}
		return t.getPath(nd.Children[path.At(0)], full, offset+1, acc)

	case hashNode:
		resolved, err := t.recover(common.Hash(nd))
		if err != nil {
			return nil, t.withTraversed(err, full, offset)
		}
		return t.getPath(resolved, full, offset, acc)

	default:
		return acc, nil
	}
}

// GetProof commits the trie (so the node hashes it relies on are current)
// and returns the RLP-encoded bytes of every independently-addressable
// node from the root down to key's resolution point, root first. A node is
// independently addressable if its canonical encoding is at least 32 bytes
// — the point at which the parent references it by digest rather than
// inlining it — except the root, which is always included since it is the
// only anchor a verifier has.
func (t *Trie) GetProof(key []byte) ([][]byte, error) {
	if _, err := t.RootHash(); err != nil {
		return nil, err
	}
	if t.root == nil {
		return nil, nil
	}
	path, err := t.GetPath(key)
	if err != nil {
		return nil, err
	}
	proof := make([][]byte, 0, len(path))
	for i, n := range path {
		enc, err := t.encodeNodeReadOnly(n)
		if err != nil {
			return nil, err
		}
		if i == 0 || len(enc) >= 32 {
			proof = append(proof, enc)
		}
	}
	return proof, nil
}

// encodeNodeReadOnly mirrors encodeRaw but never mutates the commit cache
// or genKeys bookkeeping — proof construction is a pure read.
func (t *Trie) encodeNodeReadOnly(n Node) ([]byte, error) {
	switch nd := n.(type) {
	case nil:
		return encodeEmpty(), nil
	case *leafNode:
		return encodeLeaf(nd.Key, nd.Val)
	case *extensionNode:
		ref, err := t.childRefReadOnly(nd.Child)
		if err != nil {
			return nil, err
		}
		return encodeExtension(nd.Key, ref)
	case *branchNode:
		var refs [16]nodeRef
		for i, c := range nd.Children {
			ref, err := t.childRefReadOnly(c)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		return encodeBranch(refs, nd.Value)
	case hashNode:
		return nil, decoderErrorf(nil, "cannot encode a hash reference node directly")
	default:
		return nil, decoderErrorf(nil, "unknown node type")
	}
}

func (t *Trie) childRefReadOnly(n Node) (nodeRef, error) {
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
	enc, err := t.encodeNodeReadOnly(n)
	if err != nil {
		return nodeRef{}, err
	}
	if len(enc) < 32 {
		return nodeRef{raw: enc}, nil
	}
	hash := keccak(enc)
	b, err := rlpEncodeHash(hash)
	if err != nil {
		return nodeRef{}, err
	}
	return nodeRef{raw: b}, nil
}

// VerifyProof checks that proof reconstructs a trie rooted at rootHash
// under which key resolves to some value, returning that value (nil if
// key is absent from the proven trie). Any inconsistency in the proof
// itself — a missing link, a node that doesn't hash to what its parent
// expects — is reported as ErrInvalidProof, never as a generic store error,
// since the scratch store built here is never missing data through any
// fault of the caller's real store.
func VerifyProof(rootHash common.Hash, key []byte, proof [][]byte) ([]byte, error) {
	if rootHash == EmptyRootHash && len(proof) == 0 {
		return nil, nil
	}
	scratch := store.NewMemory()
	for _, blob := range proof {
		h := keccak(blob)
		if err := scratch.Insert(h[:], blob); err != nil {
			return nil, ErrInvalidProof
		}
	}
	pt, err := FromRootHash(scratch, rootHash)
	if err != nil {
		return nil, ErrInvalidProof
	}
	v, err := pt.Get(key)
	if err != nil {
		if errors.Is(err, ErrInvalidProof) {
			return nil, err
		}
		return nil, ErrInvalidProof
	}
	return v, nil
}
