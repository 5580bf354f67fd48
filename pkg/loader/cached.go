package loader

import (
	"fmt"

	"github.com/daimatz/jclassgen/pkg/classfile"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize bounds the parsed classes kept by NewCached when the
// configuration does not say otherwise.
const DefaultCacheSize = 256

// Cached keeps the most recently loaded classes of another loader. Misses
// are not cached.
type Cached struct {
	inner ClassLoader
	cache *lru.Cache
}

func NewCached(inner ClassLoader, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("loader: creating cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) LoadClass(name string) (*classfile.ClassFile, error) {
	if v, ok := c.cache.Get(name); ok {
		return v.(*classfile.ClassFile), nil
	}
	cf, err := c.inner.LoadClass(name)
	if err != nil {
		return nil, err
	}
	if c.cache.Add(name, cf) {
		log.Debugf("cache full, evicted oldest entry for %s", name)
	}
	return cf, nil
}

// Len returns the number of cached classes.
func (c *Cached) Len() int { return c.cache.Len() }
