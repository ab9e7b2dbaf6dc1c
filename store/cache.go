package store

import "github.com/VictoriaMetrics/fastcache"

// CachedStore wraps any Store with a fastcache read-through layer, keyed by
// digest. Branch nodes near the root are read on almost every operation, so
// caching them avoids repeated disk round-trips.
type CachedStore struct {
	backing Store
	cache   *fastcache.Cache
}

// NewCachedStore wraps backing with a fastcache of the given byte budget.
func NewCachedStore(backing Store, maxBytes int) *CachedStore {
	return &CachedStore{backing: backing, cache: fastcache.New(maxBytes)}
}

func (c *CachedStore) Get(key []byte) ([]byte, error) {
	if v, ok := c.cache.HasGet(nil, key); ok {
		return v, nil
	}
	v, err := c.backing.Get(key)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v)
	return v, nil
}

func (c *CachedStore) Insert(key, value []byte) error {
	if err := c.backing.Insert(key, value); err != nil {
		return err
	}
	c.cache.Set(key, value)
	return nil
}

func (c *CachedStore) InsertBatch(keys, values [][]byte) error {
	if err := c.backing.InsertBatch(keys, values); err != nil {
		return err
	}
	for i, k := range keys {
		c.cache.Set(k, values[i])
	}
	return nil
}

func (c *CachedStore) Remove(key []byte) error {
	if err := c.backing.Remove(key); err != nil {
		return err
	}
	c.cache.Del(key)
	return nil
}

func (c *CachedStore) RemoveBatch(keys [][]byte) error {
	if err := c.backing.RemoveBatch(keys); err != nil {
		return err
	}
	for _, k := range keys {
		c.cache.Del(k)
	}
	return nil
}

func (c *CachedStore) Contains(key []byte) (bool, error) {
	if c.cache.Has(key) {
		return true, nil
	}
	return c.backing.Contains(key)
}
