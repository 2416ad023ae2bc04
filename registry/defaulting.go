package registry

import (
	"errors"
	"fmt"

	"github.com/mostlygeek/meltdown/consumer"
	"github.com/mostlygeek/meltdown/selector"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Defaulting wraps a Store so that Select never comes back empty. When no
// stored registration matches a key, a registration binding the match-all
// selector to the default consumer is returned instead.
//
// The fallback is built on every miss and never written to the store, so
// repeated misses do not populate the store's cache.
type Defaulting struct {
	Store
	def consumer.Consumer
}

// NewDefaulting wraps store with def as the fallback consumer. A nil store is
// replaced with an empty Caching store.
func NewDefaulting(store Store, def consumer.Consumer) (*Defaulting, error) {
	if consumer.IsNil(def) {
		return nil, fmt.Errorf("%w: default consumer is required", ErrInvalidArgument)
	}
	if store == nil {
		store = NewCaching()
	}
	return &Defaulting{Store: store, def: def}, nil
}

// Default returns the fallback consumer
func (d *Defaulting) Default() consumer.Consumer {
	return d.def
}

func (d *Defaulting) Select(key any) []Registration {
	res := d.Store.Select(key)
	if len(res) == 0 {
		res = append(res, Registration{
			sel:         selector.MatchAll(),
			consumer:    d.def,
			synthesized: true,
		})
	}
	return res
}
