package cache

import (
	"context"
	"time"
)

// NullCache discards every write and misses on every read. The graph
// command falls back to it for --no-cache and when the cache directory
// cannot be created, so rendering always goes through Graphviz.
type NullCache struct{}

// NewNullCache returns a cache that stores nothing.
func NewNullCache() Cache {
	return NullCache{}
}

// Get reports a miss for every key.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set drops data; the next Get for key still misses.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
