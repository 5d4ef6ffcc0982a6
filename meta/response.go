package meta

import "strings"

// Response represents one parsed meta protocol response.
type Response struct {
	// Status is the response code: HD, VA, EN, NF, NS, EX, MN, ME.
	Status StatusType

	// Data is the value payload of a VA response, or the raw debug text of
	// an ME response.
	Data []byte

	// Flags holds the response flags in wire order.
	Flags []Flag
}

// IsSuccess reports whether the response indicates a successful operation.
func (r *Response) IsSuccess() bool {
	switch r.Status {
	case StatusHD, StatusVA, StatusMN, StatusME:
		return true
	default:
		return false
	}
}

// IsMiss reports whether the response indicates a cache miss.
func (r *Response) IsMiss() bool {
	return r.Status == StatusEN || r.Status == StatusNF
}

// IsNotStored reports whether the item was not stored. Not an error: an add
// on an existing key or a replace on a missing key lands here.
func (r *Response) IsNotStored() bool {
	return r.Status == StatusNS
}

// IsCASMismatch reports whether the store failed on a CAS conflict.
func (r *Response) IsCASMismatch() bool {
	return r.Status == StatusEX
}

// HasFlag reports whether the response carries a flag of the given type.
func (r *Response) HasFlag(flagType FlagType) bool {
	for _, f := range r.Flags {
		if f.Type == flagType {
			return true
		}
	}
	return false
}

// FlagToken returns the token of the first flag of the given type.
func (r *Response) FlagToken(flagType FlagType) (string, bool) {
	for _, f := range r.Flags {
		if f.Type == flagType {
			return f.Token, true
		}
	}
	return "", false
}

// Opaque returns the echoed O token, if any.
func (r *Response) Opaque() (string, bool) {
	return r.FlagToken(FlagOpaque)
}

// HasWinFlag reports whether the client won the right to recache.
func (r *Response) HasWinFlag() bool { return r.HasFlag(FlagWin) }

// HasStaleFlag reports whether the item is marked stale.
func (r *Response) HasStaleFlag() bool { return r.HasFlag(FlagStale) }

// ParseDebugParams parses the key=value pairs of an ME response payload.
// Malformed entries are skipped.
func ParseDebugParams(data []byte) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Fields(string(data)) {
		if key, value, found := strings.Cut(part, "="); found {
			params[key] = value
		}
	}
	return params
}
