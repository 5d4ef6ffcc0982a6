package protocol

// Numeric token parsing shared by both dialect parsers.
//
// The grammar only admits plain decimal tokens. Anything else, including
// overflow, is a parse failure: numbers are never truncated or wrapped.

// ParseUint parses a decimal token into a uint64. It rejects empty input,
// non-digit bytes, tokens longer than a uint64 can represent, and overflow.
func ParseUint(tok []byte) (uint64, error) {
	if len(tok) == 0 {
		return 0, &ParseError{Message: "empty numeric token"}
	}
	if len(tok) > MaxUintDigits {
		return 0, &ParseError{Message: "numeric token too long: " + string(tok)}
	}

	var n uint64
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, &ParseError{Message: "non-digit in numeric token: " + string(tok)}
		}
		d := uint64(c - '0')
		if n > (1<<64-1)/10 || n*10 > (1<<64-1)-d {
			return 0, &ParseError{Message: "numeric token overflows uint64: " + string(tok)}
		}
		n = n*10 + d
	}
	return n, nil
}

// ParseUint32 parses a decimal token into a uint32 (client flags, slab class
// IDs, value sizes on the wire).
func ParseUint32(tok []byte) (uint32, error) {
	n, err := ParseUint(tok)
	if err != nil {
		return 0, err
	}
	if n > 1<<32-1 {
		return 0, &ParseError{Message: "numeric token overflows uint32: " + string(tok)}
	}
	return uint32(n), nil
}

// ParseInt parses a possibly negative decimal token into an int64
// (metadump expiration timestamps may be -1).
func ParseInt(tok []byte) (int64, error) {
	if len(tok) > 0 && tok[0] == '-' {
		n, err := ParseUint(tok[1:])
		if err != nil {
			return 0, err
		}
		if n > 1<<63-1 {
			return 0, &ParseError{Message: "numeric token overflows int64: " + string(tok)}
		}
		return -int64(n), nil
	}
	n, err := ParseUint(tok)
	if err != nil {
		return 0, err
	}
	if n > 1<<63-1 {
		return 0, &ParseError{Message: "numeric token overflows int64: " + string(tok)}
	}
	return int64(n), nil
}
