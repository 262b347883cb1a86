// Package offline is the durable key/value cache that buffers progress while the portal is
// unreachable. Keys are scoped to a namespace, one per signed-in user.
package offline

import (
	"context"
	"sort"
	"strings"
)

type Entry struct {
	Key   string
	Value []byte
}

// Bucket is one namespace of the store. It satisfies progress.Bucket.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// DeleteIfValue removes key only while it still holds value and reports whether it did.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)
	// List returns the entries whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Entry, error)
}

type Store interface {
	Bucket(namespace string) Bucket
	Close() error
}

// SortEntries orders entries by key, the order List promises.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

func normalizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		return "anonymous"
	}
	return ns
}
