package archiver

import "sync"

// ArchivedObject is implemented by every Go type that knows how to
// populate itself from a class's own archived ivars. Unlike the
// original class hierarchy this is modeled on, a Go implementation
// covering a subclass is responsible for reading its superclasses'
// data too (typically by embedding the superclass's Go type and
// calling its UnarchiveSelf first) - there is no automatic dispatch up
// an inheritance chain here.
type ArchivedObject interface {
	UnarchiveSelf(u *Unarchiver, class *Class) error
}

// Factory allocates a new, empty instance of a registered class. The
// instance is registered in the unarchiver's shared object table
// before UnarchiveSelf is called, so that a cycle back to this same
// object elsewhere in its own ivars resolves correctly instead of
// recursing forever.
type Factory func() ArchivedObject

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register associates an archived class name with a factory. Calling
// Register twice for the same name replaces the previous factory,
// which is mainly useful for tests.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Lookup returns the factory registered for name, if any.
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}
