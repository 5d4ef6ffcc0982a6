// Package meta implements the compact flag-letter-based memcached meta
// protocol (mg, ms, md, ma, me, mn): request serialization and incremental
// response parsing.
package meta

import (
	"strconv"

	"github.com/hexwren/memcache/protocol"
)

// Flag is one meta protocol flag with its optional token.
type Flag struct {
	Type  FlagType
	Token string
}

// Request represents a meta protocol request. It is a pure data container;
// Append produces the wire bytes.
type Request struct {
	// Command is the 2-character command code.
	Command CmdType

	// Key is the cache key. Empty for mn.
	Key string

	// Data is the value payload for ms.
	Data []byte

	// Flags are emitted in the order given here, so wire output is
	// deterministic and stable for a given request.
	Flags []Flag
}

// NewRequest creates a meta protocol request.
func NewRequest(cmd CmdType, key string, data []byte, flags ...Flag) *Request {
	return &Request{Command: cmd, Key: key, Data: data, Flags: flags}
}

// HasFlag reports whether the request carries a flag of the given type.
func (r *Request) HasFlag(flagType FlagType) bool {
	for _, f := range r.Flags {
		if f.Type == flagType {
			return true
		}
	}
	return false
}

// FlagToken returns the token of the first flag of the given type.
func (r *Request) FlagToken(flagType FlagType) (string, bool) {
	for _, f := range r.Flags {
		if f.Type == flagType {
			return f.Token, true
		}
	}
	return "", false
}

// WithFlag appends a flag and returns the request for chaining.
func (r *Request) WithFlag(flagType FlagType, token string) *Request {
	r.Flags = append(r.Flags, Flag{Type: flagType, Token: token})
	return r
}

// Append serializes the request and appends the wire bytes to dst:
//
//	<cmd> <key> [<size>] <flags>*\r\n[<data>\r\n]
//
// The key is validated before any bytes are produced.
func (r *Request) Append(dst []byte) ([]byte, error) {
	if r.Command == CmdNoOp {
		dst = append(dst, CmdNoOp...)
		return append(dst, protocol.CRLF...), nil
	}

	if err := validateRequestKey(r.Key, r.HasFlag(FlagBase64Key)); err != nil {
		return nil, err
	}
	if tok, ok := r.FlagToken(FlagOpaque); ok && len(tok) > protocol.MaxOpaqueLength {
		return nil, &protocol.InvalidArgumentError{Message: "opaque token exceeds 32 bytes"}
	}

	dst = append(dst, r.Command...)
	dst = append(dst, ' ')
	dst = append(dst, r.Key...)

	if r.Command == CmdSet {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(r.Data)), 10)
	}

	for _, f := range r.Flags {
		dst = append(dst, ' ', byte(f.Type))
		dst = append(dst, f.Token...)
	}
	dst = append(dst, protocol.CRLF...)

	if r.Command == CmdSet {
		dst = append(dst, r.Data...)
		dst = append(dst, protocol.CRLF...)
	}

	return dst, nil
}

// Encode serializes the request into a fresh byte slice.
func (r *Request) Encode() ([]byte, error) {
	return r.Append(nil)
}

// validateRequestKey applies the classic key rules, except that a
// base64-encoded key only needs to satisfy the length bound once decoded,
// so the whitespace restriction is lifted for it.
func validateRequestKey(key string, base64 bool) error {
	if base64 {
		if len(key) == 0 {
			return &protocol.InvalidArgumentError{Message: "key is empty"}
		}
		return nil
	}
	return protocol.ValidateKey(key)
}
