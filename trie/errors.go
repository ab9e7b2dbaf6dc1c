package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidStateRoot is returned when a trie is opened against a root hash
// that is not present in the backing store.
var ErrInvalidStateRoot = errors.New("trie: invalid state root")

// ErrInvalidProof is returned by VerifyProof when the supplied proof nodes
// do not reconstruct a path consistent with the claimed root.
var ErrInvalidProof = errors.New("trie: invalid proof")

// ErrInvalidData names the invalid-node-data condition. The decoder in this
// package does not return it: malformed or mis-shaped node bytes are
// reported as *DecoderError, and an extension whose child reference is the
// empty string decodes without error into an extension with a nil child.
var ErrInvalidData = errors.New("trie: invalid node data")

// MissingTrieNodeError reports that a digest referenced by the trie could
// not be resolved in the backing store.
type MissingTrieNodeError struct {
	Digest    common.Hash
	Traversed *Path
	RootHash  common.Hash
	ErrKey    []byte
}

func (e *MissingTrieNodeError) Error() string {
	if e.ErrKey != nil {
		return fmt.Sprintf("trie: missing node %x while resolving key %x under root %x", e.Digest, e.ErrKey, e.RootHash)
	}
	return fmt.Sprintf("trie: missing node %x under root %x", e.Digest, e.RootHash)
}

// withKey returns a copy of the error with ErrKey populated, used by the
// public entry points (Get/Insert/Remove/GetProof) to attach the top-level
// key once an internal MissingTrieNodeError bubbles up.
func (e *MissingTrieNodeError) withKey(key []byte) *MissingTrieNodeError {
	clone := *e
	clone.ErrKey = key
	return &clone
}

// DBError wraps a failure from the backing Store.
type DBError struct {
	Message string
	Err     error
}

func (e *DBError) Error() string { return fmt.Sprintf("trie: db error: %s", e.Message) }
func (e *DBError) Unwrap() error { return e.Err }

func dbErrorf(err error, format string, args ...interface{}) *DBError {
	return &DBError{Message: fmt.Sprintf(format, args...), Err: err}
}

// DecoderError wraps a failure decoding canonical node bytes.
type DecoderError struct {
	Message string
	Err     error
}

func (e *DecoderError) Error() string { return fmt.Sprintf("trie: decode error: %s", e.Message) }
func (e *DecoderError) Unwrap() error { return e.Err }

func decoderErrorf(err error, format string, args ...interface{}) *DecoderError {
	return &DecoderError{Message: fmt.Sprintf(format, args...), Err: err}
}

func asMissingNode(err error) (*MissingTrieNodeError, bool) {
	var m *MissingTrieNodeError
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}
