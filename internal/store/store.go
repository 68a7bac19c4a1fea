// Package store is the durable client-side key-value store: the active
// household, form drafts and display preferences survive restarts here,
// and changes written by another homesync process are observable
// through Watch.
package store

import "context"

// Change is a write observed in the store.
type Change struct {
	Seq     int64
	Key     string
	Value   string
	Removed bool
}

// KV is a string key-value store with change notification.
type KV interface {
	// Get returns the value of key and whether it is present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// Watch delivers changes made by other processes until ctx is done.
	Watch(ctx context.Context) (<-chan Change, error)
}
