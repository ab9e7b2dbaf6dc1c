package trie

import (
	"github.com/ethereum/go-ethereum/common"
	ethlog "github.com/ethereum/go-ethereum/log"
)

// Iterator walks every key-value pair stored in a trie in lexicographic key
// order, without recursion: it drives an explicit stack of trace frames,
// each progressing through Start -> Doing -> End as the walk enters and
// leaves it, exactly mirroring how a recursive DFS would visit the same
// nodes, but safe against arbitrarily deep tries.
//
// Usage:
//
//	it := trie.NewIterator(t)
//	for it.Next() {
//	    use(it.Key, it.Value)
//	}
//	if it.Err != nil { ... }
type Iterator struct {
	Key   []byte
	Value []byte
	Err   error

	trie    *Trie
	stack   []*iterFrame
	path    Path
	started bool
}

type frameStatus int

const (
	statusStart frameStatus = iota
	statusDoing
	statusEnd
)

type iterFrame struct {
	node       Node
	status     frameStatus
	childIndex int // -1: branch value not yet visited
}

// NewIterator returns an iterator positioned before the first entry.
func NewIterator(t *Trie) *Iterator {
	return &Iterator{trie: t}
}

// Next advances to the next key-value pair in order, reporting whether one
// was found. An unresolvable Hash node along the way is logged and skipped
// — the walk is best-effort, not all-or-nothing, matching how a read-only
// range scan degrades gracefully when the backing store is incomplete.
func (it *Iterator) Next() bool {
	if !it.started {
		it.started = true
		if it.trie.root != nil {
			it.stack = []*iterFrame{{node: it.trie.root, status: statusStart, childIndex: -1}}
		}
	}

	for len(it.stack) > 0 {
		f := it.stack[len(it.stack)-1]

		if f.node == nil {
			it.popFrame()
			continue
		}

		switch f.status {
		case statusStart:
			f.status = statusDoing

		case statusDoing:
			switch nd := f.node.(type) {
			case *leafNode:
				it.path.Extend(nd.Key)
				raw, ok := it.path.EncodeRaw()
				f.status = statusEnd
				if !ok {
					it.Err = decoderErrorf(nil, "leaf key is not byte-aligned")
					return false
				}
				it.Key = raw
				it.Value = nd.Val
				return true

			case *extensionNode:
				it.path.Extend(nd.Key)
				f.status = statusEnd
				it.stack = append(it.stack, &iterFrame{node: nd.Child, status: statusStart, childIndex: -1})

			case *branchNode:
				if f.childIndex == -1 {
					f.childIndex = 0
					if nd.Value != nil {
						it.path.Push(terminatorNibble)
						raw, ok := it.path.EncodeRaw()
						it.path.Pop()
						if !ok {
							it.Err = decoderErrorf(nil, "branch value path is not byte-aligned")
							return false
						}
						it.Key = raw
						it.Value = nd.Value
						return true
					}
				}
				if f.childIndex > 0 {
					it.path.Pop()
				}
				for f.childIndex < 16 && nd.Children[f.childIndex] == nil {
					f.childIndex++
				}
				if f.childIndex == 16 {
					f.status = statusEnd
					continue
				}
				it.path.Push(byte(f.childIndex))
				child := nd.Children[f.childIndex]
				f.childIndex++
				it.stack = append(it.stack, &iterFrame{node: child, status: statusStart, childIndex: -1})

			case hashNode:
				resolved, err := it.trie.recover(common.Hash(nd))
				if err != nil {
					ethlog.Warn("trie iterator: skipping unresolvable node", "digest", common.Hash(nd), "err", err)
					f.status = statusEnd
					continue
				}
				f.node = resolved

			default:
				f.status = statusEnd
			}

		case statusEnd:
			switch nd := f.node.(type) {
			case *extensionNode:
				it.path.Truncate(it.path.Len() - nd.Key.Len())
			case *leafNode:
				it.path.Truncate(it.path.Len() - nd.Key.Len())
			}
			it.popFrame()
		}
	}
	return false
}

func (it *Iterator) popFrame() {
	it.stack = it.stack[:len(it.stack)-1]
}
