package counter

import "context"

// Entry is a typed value as held by a host store.
type Entry struct {
	Type    string
	Version int
	Data    []byte
}

// Slot is exclusive access to one key for the duration of a Keyspace.Update call.
// Implementations may buffer writes until the update returns.
type Slot interface {
	// Get returns the entry at the key, or nil if the key is absent.
	Get() (*Entry, error)
	Put(e Entry) error
	Delete() error
	// Replicate records argv as the durable form of the current operation.
	Replicate(argv ...string) error
}

// Keyspace is the host key-value store a Controller runs against.
type Keyspace interface {
	// Update calls fn with exclusive access to key. Writes made through the
	// slot are committed only if fn returns nil.
	Update(ctx context.Context, key string, fn func(Slot) error) error
	// Scan calls fn for every stored key.
	Scan(ctx context.Context, fn func(key string, e Entry) error) error
}
