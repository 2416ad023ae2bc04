package registry

import (
	"errors"
	"slices"
	"sync"

	"github.com/mostlygeek/meltdown/consumer"
	"github.com/mostlygeek/meltdown/selector"
)

var (
	ErrNilSelector = errors.New("selector cannot be nil")
	ErrNilConsumer = errors.New("consumer cannot be nil")
)

// Store is a selector-keyed collection of registrations.
type Store interface {
	Register(sel selector.Selector, c consumer.Consumer, opts ...Option) (Registration, error)

	// Select returns every registration whose selector matches key, in
	// store order. Callers own the returned slice.
	Select(key any) []Registration

	// Unregister removes all registrations whose selector matches key.
	Unregister(key any) bool
	Remove(id uint64) bool
	Clear()

	// Registrations returns a snapshot of the stored registrations.
	Registrations() []Registration
}

// Caching is a Store that keeps registrations in insertion order and
// memoizes Select results per key. Any mutation drops the whole cache.
// It is safe for concurrent use.
type Caching struct {
	mu     sync.RWMutex
	regs   []Registration
	nextID uint64

	cacheMu    sync.Mutex
	cache      map[any][]Registration
	cacheLimit int
}

// DefaultCacheLimit bounds the number of memoized keys.
const DefaultCacheLimit = 4096

type CachingOption func(*Caching)

// WithCacheLimit sets how many keys are memoized before the cache is
// dropped and refilled. n <= 0 keeps DefaultCacheLimit.
func WithCacheLimit(n int) CachingOption {
	return func(c *Caching) {
		if n > 0 {
			c.cacheLimit = n
		}
	}
}

func NewCaching(opts ...CachingOption) *Caching {
	c := &Caching{
		regs:       make([]Registration, 0, 16),
		cache:      make(map[any][]Registration),
		cacheLimit: DefaultCacheLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Caching) Register(sel selector.Selector, cons consumer.Consumer, opts ...Option) (Registration, error) {
	if sel == nil {
		return Registration{}, ErrNilSelector
	}
	if consumer.IsNil(cons) {
		return Registration{}, ErrNilConsumer
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	reg := Registration{id: c.nextID, sel: sel, consumer: cons}
	for _, opt := range opts {
		opt(&reg)
	}
	c.regs = append(c.regs, reg)
	c.invalidate()
	return reg, nil
}

func (c *Caching) Select(key any) []Registration {
	cacheable := selector.Hashable(key)
	if cacheable {
		c.cacheMu.Lock()
		cached, ok := c.cache[key]
		c.cacheMu.Unlock()
		if ok {
			return slices.Clone(cached)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []Registration
	for _, reg := range c.regs {
		if reg.sel.Matches(key) {
			matched = append(matched, reg)
		}
	}

	// populated under the read lock so a concurrent mutation cannot
	// invalidate between the scan and the store
	if cacheable {
		c.cacheMu.Lock()
		if len(c.cache) >= c.cacheLimit {
			clear(c.cache)
		}
		c.cache[key] = matched
		c.cacheMu.Unlock()
	}
	return slices.Clone(matched)
}

func (c *Caching) Unregister(key any) bool {
	return c.removeWhere(func(reg Registration) bool {
		return reg.sel.Matches(key)
	})
}

func (c *Caching) Remove(id uint64) bool {
	return c.removeWhere(func(reg Registration) bool {
		return reg.id == id
	})
}

func (c *Caching) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.regs = c.regs[:0]
	c.invalidate()
}

func (c *Caching) Registrations() []Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.regs)
}

// Len returns the number of stored registrations
func (c *Caching) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regs)
}

// cached returns the number of memoized keys, for testing only.
func (c *Caching) cached() int {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return len(c.cache)
}

func (c *Caching) removeWhere(match func(Registration) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.regs)
	c.regs = slices.DeleteFunc(c.regs, match)
	if len(c.regs) == before {
		return false
	}
	c.invalidate()
	return true
}

// invalidate must be called with mu held for writing.
func (c *Caching) invalidate() {
	c.cacheMu.Lock()
	clear(c.cache)
	c.cacheMu.Unlock()
}
