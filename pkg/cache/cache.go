// Package cache stores rendered artifacts between CLI invocations.
//
// Rendering a project graph to SVG runs the Graphviz engine, which is the
// slowest thing knobctl does. The DOT source is a pure function of the
// project, so the rendered bytes can be reused whenever the same DOT text
// comes back. [FileCache] keeps entries on disk under the user's cache
// directory; [NullCache] disables caching.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/knobs/pkg/hash"
)

// Cache is a byte store keyed by strings.
type Cache interface {
	// Get returns the stored data and whether it was found. Expired entries
	// are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Key builds a cache key from a namespace and the parts that determine the
// artifact. Parts are fingerprinted so keys stay short regardless of input
// size.
//
//	cache.Key("svg", dot)
func Key(namespace string, parts ...string) string {
	return namespace + ":" + hash.Fingerprint([]byte(strings.Join(parts, "\x00")))
}
