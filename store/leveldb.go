package store

import (
	"github.com/golang/snappy"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDB is a disk-resident Store backed by goleveldb, the engine a real
// chain client uses for its node database.
type LevelDB struct {
	db       *leveldb.DB
	compress bool
}

// LevelDBOption configures a LevelDB store at construction time.
type LevelDBOption func(*LevelDB)

// WithSnappy enables transparent snappy compression of stored values.
func WithSnappy() LevelDBOption {
	return func(l *LevelDB) { l.compress = true }
}

// OpenLevelDB opens (creating if absent) a goleveldb database at path.
func OpenLevelDB(path string, opts ...LevelDBOption) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	l := &LevelDB{db: db}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func (l *LevelDB) encode(v []byte) []byte {
	if !l.compress {
		return v
	}
	return snappy.Encode(nil, v)
}

func (l *LevelDB) decode(v []byte) ([]byte, error) {
	if !l.compress {
		return v, nil
	}
	return snappy.Decode(nil, v)
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l.decode(v)
}

func (l *LevelDB) Insert(key, value []byte) error {
	return l.db.Put(key, l.encode(value), nil)
}

func (l *LevelDB) InsertBatch(keys, values [][]byte) error {
	if len(keys) != len(values) {
		return errMismatchedBatch
	}
	batch := new(leveldb.Batch)
	for i, k := range keys {
		batch.Put(k, l.encode(values[i]))
	}
	return l.db.Write(batch, nil)
}

func (l *LevelDB) Remove(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) RemoveBatch(keys [][]byte) error {
	batch := new(leveldb.Batch)
	for _, k := range keys {
		batch.Delete(k)
	}
	return l.db.Write(batch, nil)
}

func (l *LevelDB) Contains(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

// Close releases the underlying database handle.
func (l *LevelDB) Close() error { return l.db.Close() }
