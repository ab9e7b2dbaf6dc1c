package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// decodeNode decodes canonical bytes loaded from the store (always a
// 2-element or 17-element RLP list) into a Node.
func decodeNode(data []byte) (Node, error) {
	kind, content, _, err := rlp.Split(data)
	if err != nil {
		return nil, decoderErrorf(err, "malformed RLP")
	}
	if kind != rlp.List {
		return nil, decoderErrorf(nil, "node data is not a list")
	}
	count, err := rlp.CountValues(content)
	if err != nil {
		return nil, decoderErrorf(err, "malformed list")
	}
	switch count {
	case 2:
		return decodeShort(content)
	case 17:
		return decodeFull(content)
	default:
		return nil, decoderErrorf(nil, "node list has %d elements, want 2 or 17", count)
	}
}

func decodeShort(content []byte) (Node, error) {
	keyRaw, rest, err := rlp.SplitString(content)
	if err != nil {
		return nil, decoderErrorf(err, "decode short node key")
	}
	key := DecodePathCompact(keyRaw)

	if key.IsLeaf() {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, decoderErrorf(err, "decode leaf value")
		}
		v := make([]byte, len(val))
		copy(v, val)
		return &leafNode{Key: key, Val: v}, nil
	}

	child, err := decodeChildRef(rest)
	if err != nil {
		return nil, err
	}
	return &extensionNode{Key: key, Child: child}, nil
}

func decodeFull(content []byte) (Node, error) {
	n := &branchNode{}
	rest := content
	for i := 0; i < 16; i++ {
		var (
			child Node
			err   error
		)
		child, rest, err = decodeChildRefAndRest(rest)
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	val, _, err := rlp.SplitString(rest)
	if err != nil {
		return nil, decoderErrorf(err, "decode branch value")
	}
	if len(val) > 0 {
		v := make([]byte, len(val))
		copy(v, val)
		n.Value = v
	}
	return n, nil
}

// decodeChildRef decodes a single child-reference element and expects it to
// be the only thing left in data.
func decodeChildRef(data []byte) (Node, error) {
	n, rest, err := decodeChildRefAndRest(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, decoderErrorf(nil, "trailing data after child reference")
	}
	return n, nil
}

// decodeChildRefAndRest decodes one child reference from the front of data
// and returns the remaining bytes, for iterating through list elements.
func decodeChildRefAndRest(data []byte) (Node, []byte, error) {
	kind, content, rest, err := rlp.Split(data)
	if err != nil {
		return nil, nil, decoderErrorf(err, "decode child reference")
	}
	switch kind {
	case rlp.List:
		child, err := decodeNode(dataFor(data, content, rest))
		if err != nil {
			return nil, nil, err
		}
		return child, rest, nil
	case rlp.String:
		switch len(content) {
		case 0:
			return nil, rest, nil
		case common.HashLength:
			var h common.Hash
			copy(h[:], content)
			return hashNode(h), rest, nil
		default:
			return nil, nil, decoderErrorf(nil, "invalid child reference length %d", len(content))
		}
	default:
		return nil, nil, decoderErrorf(nil, "unexpected RLP kind for child reference")
	}
}

// dataFor reconstructs the full encoded span (header + content) of a
// just-split RLP item, since decodeNode expects the whole item, not just
// its content.
func dataFor(original, content, rest []byte) []byte {
	return original[:len(original)-len(rest)]
}
