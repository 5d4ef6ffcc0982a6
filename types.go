package memcache

import "github.com/hexwren/memcache/ascii"

// Item is one cache entry as seen by the classic dialect operations.
type Item struct {
	Key   string
	Value []byte

	// Flags is the opaque 32-bit client metadata stored alongside the
	// value. The engine reserves one bit when compression is enabled (see
	// WithCompression); everything else is passed through untouched.
	Flags uint32

	// TTL is the expiration in seconds. Zero means no expiration; values
	// above 30 days are interpreted by the server as absolute unix
	// timestamps.
	TTL int64

	// CAS is the compare-and-swap token from a Gets retrieval. HasCAS
	// distinguishes a real zero token from no token at all.
	CAS    uint64
	HasCAS bool

	// Found reports whether the retrieval hit. Storage operations ignore
	// it.
	Found bool
}

// KeyMetadata is one entry of an lru_crawler metadump walk.
type KeyMetadata = ascii.KeyMetadata
