package trie

// Path is a sequence of nibbles (4-bit values in [0,15]) describing a
// position, or a partial key, within the trie. A path that ends a
// value-bearing route (a leaf key, or the key under which Get/Insert/Remove
// is invoked) carries a trailing terminator nibble (16) as its last element;
// Terminator reports whether that sentinel is present. This mirrors the
// "hex" key representation used throughout the Ethereum trie codebase:
// keybytesToHex appends the sentinel, hasTerm checks for it, and every
// slicing operation that reaches the end of the nibble slice carries it
// along for free.
type Path struct {
	nibbles []byte
}

// terminatorNibble is reserved: never a valid data nibble (those are 0-15),
// so its presence as the last element unambiguously marks a leaf path.
const terminatorNibble = 16

// PathFromKey converts a raw byte key into its nibble Path, with the
// terminator sentinel appended. This is the form used for the top-level key
// argument to Get/Insert/Remove.
func PathFromKey(key []byte) Path {
	n := make([]byte, len(key)*2+1)
	for i, b := range key {
		n[i*2] = b >> 4
		n[i*2+1] = b & 0x0f
	}
	n[len(n)-1] = terminatorNibble
	return Path{nibbles: n}
}

// PathFromNibbles wraps a raw nibble slice (values 0-15, plus an optional
// trailing terminator nibble) as a Path without copying semantics beyond
// what the caller provides. Callers that build paths programmatically
// (single-nibble extension prefixes during degenerate, for instance) use
// this directly.
func PathFromNibbles(nibbles []byte) Path {
	return Path{nibbles: nibbles}
}

// Len returns the number of nibbles, including the terminator sentinel
// when present.
func (p Path) Len() int { return len(p.nibbles) }

// IsEmpty reports whether the path has no nibbles at all (not even a
// terminator sentinel).
func (p Path) IsEmpty() bool { return len(p.nibbles) == 0 }

// At returns the nibble at index i. Valid values are 0-15, or 16 if i is
// the position of a terminator sentinel.
func (p Path) At(i int) byte { return p.nibbles[i] }

// Terminator reports whether this path carries the trailing terminator
// sentinel, i.e. whether it denotes a value-bearing (leaf) route.
func (p Path) Terminator() bool {
	return len(p.nibbles) > 0 && p.nibbles[len(p.nibbles)-1] == terminatorNibble
}

// IsLeaf is an alias for Terminator, named for readability at call sites
// that just decoded a compact path and want to know which node shape it
// belongs to.
func (p Path) IsLeaf() bool { return p.Terminator() }

// Slice returns the sub-path nibbles[lo:hi].
func (p Path) Slice(lo, hi int) Path {
	return Path{nibbles: p.nibbles[lo:hi]}
}

// Offset returns the suffix of the path starting at nibble k.
func (p Path) Offset(k int) Path {
	return p.Slice(k, len(p.nibbles))
}

// CommonPrefix returns the length of the longest common prefix of two paths.
func (p Path) CommonPrefix(o Path) int {
	return prefixLen(p.nibbles, o.nibbles)
}

func prefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Join concatenates two paths. The terminator of the result is the
// terminator of the right-hand operand (p never carries a terminator in
// well-formed uses of Join: it is always an extension prefix, which by
// construction never reaches the sentinel).
func (p Path) Join(o Path) Path {
	n := make([]byte, len(p.nibbles)+len(o.nibbles))
	copy(n, p.nibbles)
	copy(n[len(p.nibbles):], o.nibbles)
	return Path{nibbles: n}
}

// Push appends a single nibble in place, growing the path. Used by the
// iterator to extend the running path as it descends into a branch child.
func (p *Path) Push(nibble byte) {
	p.nibbles = append(p.nibbles, nibble)
}

// Pop removes the last nibble in place.
func (p *Path) Pop() {
	p.nibbles = p.nibbles[:len(p.nibbles)-1]
}

// Truncate cuts the path down to the given length in place.
func (p *Path) Truncate(newLen int) {
	p.nibbles = p.nibbles[:newLen]
}

// Extend appends all of another path's nibbles in place.
func (p *Path) Extend(o Path) {
	p.nibbles = append(p.nibbles, o.nibbles...)
}

// Clone returns a deep copy so callers can mutate it independently.
func (p Path) Clone() Path {
	n := make([]byte, len(p.nibbles))
	copy(n, p.nibbles)
	return Path{nibbles: n}
}

// EncodeCompact produces the Ethereum hex-prefix (HP) encoding: the high
// nibble of the first byte carries the terminator flag and the odd-length
// flag, content nibbles follow packed two per byte.
func (p Path) EncodeCompact() []byte {
	terminator := p.Terminator()
	content := p.nibbles
	if terminator {
		content = content[:len(content)-1]
	}
	buf := make([]byte, len(content)/2+1)
	if terminator {
		buf[0] = 1 << 5
	}
	if len(content)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= content[0]
		content = content[1:]
	}
	packNibblePairs(content, buf[1:])
	return buf
}

// DecodePathCompact decodes a hex-prefix encoded byte slice back into a
// Path, restoring the terminator sentinel when the HP terminator flag is
// set. IsLeaf/Terminator on the result report that flag.
func DecodePathCompact(compact []byte) Path {
	if len(compact) == 0 {
		return Path{}
	}
	flags := compact[0]
	terminator := flags&0x20 != 0
	odd := flags&0x10 != 0

	content := make([]byte, 0, (len(compact)-1)*2+1)
	if odd {
		content = append(content, flags&0x0f)
	}
	for _, b := range compact[1:] {
		content = append(content, b>>4, b&0x0f)
	}
	if terminator {
		content = append(content, terminatorNibble)
	}
	return Path{nibbles: content}
}

// EncodeRaw packs an even-length, terminator-bearing path back into the
// original byte key. It is defined only when the content (excluding the
// terminator sentinel) has even length and the terminator is present;
// ok is false otherwise.
func (p Path) EncodeRaw() (raw []byte, ok bool) {
	if !p.Terminator() {
		return nil, false
	}
	content := p.nibbles[:len(p.nibbles)-1]
	if len(content)&1 != 0 {
		return nil, false
	}
	raw = make([]byte, len(content)/2)
	packNibblePairs(content, raw)
	return raw, true
}

func packNibblePairs(nibbles, dst []byte) {
	for bi, ni := 0, 0; ni < len(nibbles); bi, ni = bi+1, ni+2 {
		dst[bi] = nibbles[ni]<<4 | nibbles[ni+1]
	}
}
