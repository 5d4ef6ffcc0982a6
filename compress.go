package memcache

import (
	"github.com/golang/snappy"

	"github.com/hexwren/memcache/protocol"
)

// compressionFlag is the client-flags bit marking a snappy-compressed value.
// It sits in the upper half of the flags word to stay clear of the low bits
// applications commonly use for type tags.
const compressionFlag uint32 = 1 << 30

type compressor struct {
	threshold int
}

// encode compresses value when it meets the threshold and compression
// actually shrinks it. The flag bit is only set on values this engine
// compressed.
func (z *compressor) encode(value []byte, flags uint32) ([]byte, uint32) {
	if len(value) < z.threshold {
		return value, flags
	}
	packed := snappy.Encode(nil, value)
	if len(packed) >= len(value) {
		return value, flags
	}
	return packed, flags | compressionFlag
}

// decode undoes encode on a retrieved item. Values without the flag bit pass
// through untouched, so a compressing engine reads plain values written by a
// non-compressing one.
func (z *compressor) decode(item *Item) error {
	if item.Flags&compressionFlag == 0 {
		return nil
	}
	plain, err := snappy.Decode(nil, item.Value)
	if err != nil {
		return &protocol.ParseError{Message: "corrupt compressed value for key " + item.Key, Err: err}
	}
	item.Value = plain
	item.Flags &^= compressionFlag
	return nil
}
