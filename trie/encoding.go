package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// rlpEncodeHash returns the RLP string encoding of a 32-byte digest, the
// form a child reference takes once a node has been hashed and cached.
func rlpEncodeHash(h common.Hash) ([]byte, error) {
	return rlp.EncodeToBytes(h[:])
}

// nodeRef is the RLP-ready representation of a child reference: either the
// raw bytes of an inlined child node (already valid RLP, embedded verbatim)
// or the RLP encoding of a 32-byte hash string.
type nodeRef struct {
	raw []byte
}

// rawValue returns the bytes to splice, unmodified, into the parent's RLP
// list — this is exactly rlp.RawValue's contract.
func (r nodeRef) rawValue() rlp.RawValue { return rlp.RawValue(r.raw) }

var emptyStringRLP = []byte{0x80}

// encodeLeaf produces the canonical RLP bytes for a leaf: a two-element
// list of the HP-compact-encoded key and the raw value string.
func encodeLeaf(key Path, value []byte) ([]byte, error) {
	compact := key.EncodeCompact()
	return rlp.EncodeToBytes([][]byte{compact, value})
}

// encodeExtension produces the canonical RLP bytes for an extension: a
// two-element list of the HP-compact-encoded key and the child reference.
func encodeExtension(key Path, child nodeRef) ([]byte, error) {
	keyEnc, err := rlp.EncodeToBytes(key.EncodeCompact())
	if err != nil {
		return nil, err
	}
	items := []rlp.RawValue{rlp.RawValue(keyEnc), child.rawValue()}
	return rlp.EncodeToBytes(items)
}

// encodeBranch produces the canonical RLP bytes for a branch: a 17-element
// list, the first 16 being child references, the 17th the optional value.
func encodeBranch(children [16]nodeRef, value []byte) ([]byte, error) {
	items := make([]rlp.RawValue, 17)
	for i, c := range children {
		items[i] = c.rawValue()
	}
	if value == nil {
		items[16] = rlp.RawValue(emptyStringRLP)
	} else {
		enc, err := rlp.EncodeToBytes(value)
		if err != nil {
			return nil, err
		}
		items[16] = rlp.RawValue(enc)
	}
	return rlp.EncodeToBytes(items)
}

// encodeEmpty is the canonical encoding of the Empty node: the RLP empty
// string, matching rlp.EncodeToBytes([]byte{}).
func encodeEmpty() []byte { return emptyStringRLP }
