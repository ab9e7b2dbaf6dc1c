package store

import (
	"github.com/cockroachdb/pebble"
	"github.com/golang/snappy"
)

// Pebble is a disk-resident Store backed by CockroachDB's pebble engine, an
// alternative to LevelDB with the same Store contract — the trie engine
// never needs to know which one backs it.
type Pebble struct {
	db       *pebble.DB
	compress bool
}

// PebbleOption configures a Pebble store at construction time.
type PebbleOption func(*Pebble)

// WithPebbleSnappy enables transparent snappy compression of stored values.
func WithPebbleSnappy() PebbleOption {
	return func(p *Pebble) { p.compress = true }
}

// OpenPebble opens (creating if absent) a pebble database at path.
func OpenPebble(path string, opts ...PebbleOption) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	p := &Pebble{db: db}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Pebble) encode(v []byte) []byte {
	if !p.compress {
		return v
	}
	return snappy.Encode(nil, v)
}

func (p *Pebble) decode(v []byte) ([]byte, error) {
	if !p.compress {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	return snappy.Decode(nil, v)
}

func (p *Pebble) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return p.decode(v)
}

func (p *Pebble) Insert(key, value []byte) error {
	return p.db.Set(key, p.encode(value), pebble.Sync)
}

func (p *Pebble) InsertBatch(keys, values [][]byte) error {
	if len(keys) != len(values) {
		return errMismatchedBatch
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for i, k := range keys {
		if err := batch.Set(k, p.encode(values[i]), nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *Pebble) Remove(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *Pebble) RemoveBatch(keys [][]byte) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *Pebble) Contains(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	defer closer.Close()
	return true, nil
}

// Close releases the underlying database handle.
func (p *Pebble) Close() error { return p.db.Close() }
