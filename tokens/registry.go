package tokens

import (
	"errors"
	"fmt"
	"sync"
)

// A Factory creates a new token store of its backend type at the given
// location. In-memory backends ignore the location.
type Factory func(location string) (Store, error)

var (
	backends     = make(map[string]Factory)
	backendsLock sync.Mutex
)

// Register registers a new store backend.
func Register(name string, factory Factory) error {
	backendsLock.Lock()
	defer backendsLock.Unlock()

	if _, ok := backends[name]; ok {
		return errors.New("factory for this backend already exists")
	}

	backends[name] = factory
	return nil
}

// Start creates a token store with the given backend at location.
func Start(backend, location string) (Store, error) {
	backendsLock.Lock()
	defer backendsLock.Unlock()

	factory, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("store backend %q does not exist", backend)
	}

	return factory(location)
}
