package protocol

// Protocol delimiters
const (
	// CRLF is the line terminator for the memcached protocol
	CRLF = "\r\n"

	// Space separates command tokens
	Space = " "
)

// Protocol limits
const (
	// MaxKeyLength is the maximum key length in bytes.
	// Keys exceeding this are rejected client-side before any I/O.
	MaxKeyLength = 250

	// MinKeyLength is the minimum key length in bytes
	MinKeyLength = 1

	// MaxOpaqueLength is the maximum opaque token length in bytes
	MaxOpaqueLength = 32

	// MaxValueSize is the default maximum value size (configurable on server)
	MaxValueSize = 1024 * 1024 // 1 MB

	// MaxLineLength bounds a single response line. A buffer that grows past
	// this without a line terminator cannot be completed by any well-formed
	// response, so the parser reports it as malformed instead of asking for
	// more bytes.
	MaxLineLength = 2048

	// MaxUintDigits is the longest decimal representation of a uint64
	MaxUintDigits = 20
)
