package protocol

import (
	"errors"
	"fmt"
)

// Error taxonomy for memcache operations.
//
// Every failure a caller can observe is one of:
//   - ChannelError: the byte channel failed (write, read, or closure)
//   - ParseError: the client could not make sense of the wire data
//   - a protocol-reported error: sentinel errors and the typed
//     ClientError/ServerError below
//   - InvalidArgumentError: caller-side contract violation, detected before
//     any bytes are sent
//
// The mapping from server text to error value is total and stable: the same
// wire bytes always produce the same error, so callers can branch on errors.Is
// and errors.As rather than string content.

// Sentinel errors for protocol-reported statuses.
var (
	// ErrNotStored is returned when a conditional store (add, replace) is
	// refused by the server.
	ErrNotStored = errors.New("memcache: item not stored")

	// ErrExists is returned on a CAS conflict.
	ErrExists = errors.New("memcache: item exists")

	// ErrNotFound is returned when an operation requires an existing item
	// (delete, touch, incr/decr, append/prepend) and the key is absent.
	// A plain get miss is not an error.
	ErrNotFound = errors.New("memcache: item not found")

	// ErrNonexistentCommand maps the bare ERROR response line.
	ErrNonexistentCommand = errors.New("memcache: nonexistent command")

	// ErrBusy is reported by the LRU crawler when another crawl is running.
	// Only metadump-style commands can produce it.
	ErrBusy = errors.New("memcache: lru crawler busy")

	// ErrBadClass is reported by the LRU crawler for an invalid slab class.
	// Only metadump-style commands can produce it.
	ErrBadClass = errors.New("memcache: invalid slab class")

	// ErrChannelClosed indicates the byte channel reported a clean closure
	// while a response was still expected.
	ErrChannelClosed = errors.New("memcache: channel closed")
)

// ClientError represents a CLIENT_ERROR response from the server. The server
// rejected our input; its parsing state may be corrupted, so the connection
// must be discarded.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return "memcache: CLIENT_ERROR " + e.Message
}

// ServerError represents a SERVER_ERROR response. The protocol state is still
// in sync; the connection can be reused.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "memcache: SERVER_ERROR " + e.Message
}

// ParseError indicates malformed or unrecognized wire data. The accumulation
// buffer can no longer be trusted and the connection must be discarded.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "memcache: parse: " + e.Message + ": " + e.Err.Error()
	}
	return "memcache: parse: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ChannelError wraps a byte-channel failure. Op names the operation that
// failed (dial, read, write). The channel is already broken.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("memcache: channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError reports a caller-side contract violation (oversized or
// malformed key, negative TTL). It is raised before any bytes reach the
// network; the connection stays valid.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "memcache: invalid argument: " + e.Message
}

// ShouldDiscardConnection reports whether the connection that produced err
// can still be trusted for further operations.
//
// Discard for ChannelError, ParseError, ClientError, ErrNonexistentCommand
// and any unrecognized error. Keep for protocol statuses (not stored, exists,
// not found), ServerError, InvalidArgumentError and nil.
func ShouldDiscardConnection(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrNotStored),
		errors.Is(err, ErrExists),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrBadClass):
		return false
	case errors.Is(err, ErrNonexistentCommand),
		errors.Is(err, ErrChannelClosed):
		return true
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return false
	}
	var invalidErr *InvalidArgumentError
	if errors.As(err, &invalidErr) {
		return false
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return true
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return true
	}
	var chanErr *ChannelError
	if errors.As(err, &chanErr) {
		return true
	}

	// Unknown error: be conservative.
	return true
}
