package ascii

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/hexwren/memcache/protocol"
)

// Incremental reply parsing.
//
// Each Parse* function is one step of a resumable parse over an accumulation
// buffer. The buffer is never modified; the function reports how many leading
// bytes form a complete reply so the caller can discard them afterwards.
//
// Return convention:
//
//	reply, n, nil   one complete reply occupying buf[:n]
//	nil, 0, nil     buf holds a strict prefix of a reply; read more bytes
//	nil, n, err     buf[:n] is a well-formed error line, mapped to the
//	                error taxonomy; the stream itself is still in sync
//	nil, 0, err     buf is malformed (ParseError); the stream cannot be
//	                trusted any further
//
// Calling a Parse* function twice on the same unmodified buffer yields the
// same outcome.

var (
	crlfBytes         = []byte(protocol.CRLF)
	errorLine         = []byte("ERROR")
	clientErrorPrefix = []byte("CLIENT_ERROR ")
	serverErrorPrefix = []byte("SERVER_ERROR ")
	valuePrefix       = []byte("VALUE ")
	versionPrefix     = []byte("VERSION ")
	statPrefix        = []byte("STAT ")
	endLine           = []byte("END")
	busyPrefix        = []byte("BUSY ")
	badClassPrefix    = []byte("BADCLASS ")
)

// maxDataBlock caps the declared size of a value payload. memcached's hard
// upper bound for item size (-I) is 1 GiB; a larger declared size can never
// be completed by a real server, so it is malformed rather than incomplete.
const maxDataBlock = 1 << 30

// takeLine locates the first CRLF-terminated line of buf. It returns the
// line without its terminator and the total bytes it occupies. n == 0 means
// the line is not complete yet. A line that cannot be completed (too long,
// or a bare LF where CRLF is required) is malformed.
func takeLine(buf []byte) (line []byte, n int, err error) {
	idx := bytes.IndexByte(buf, '\n')
	if idx == -1 {
		if len(buf) > protocol.MaxLineLength {
			return nil, 0, &protocol.ParseError{Message: "response line exceeds maximum length"}
		}
		return nil, 0, nil
	}
	if idx > protocol.MaxLineLength {
		return nil, 0, &protocol.ParseError{Message: "response line exceeds maximum length"}
	}
	if idx == 0 || buf[idx-1] != '\r' {
		return nil, 0, &protocol.ParseError{Message: "line feed without carriage return"}
	}
	return buf[:idx-1], idx + 1, nil
}

// parseErrorLine matches the three error line forms shared by every response
// context. ok is false when line is not an error line.
func parseErrorLine(line []byte) (err error, ok bool) {
	switch {
	case bytes.Equal(line, errorLine):
		return protocol.ErrNonexistentCommand, true
	case bytes.HasPrefix(line, clientErrorPrefix):
		return &protocol.ClientError{Message: string(line[len(clientErrorPrefix):])}, true
	case bytes.HasPrefix(line, serverErrorPrefix):
		return &protocol.ServerError{Message: string(line[len(serverErrorPrefix):])}, true
	}
	return nil, false
}

var oneLineReplies = map[string]ReplyKind{
	"STORED":     ReplyStored,
	"NOT_STORED": ReplyNotStored,
	"EXISTS":     ReplyExists,
	"DELETED":    ReplyDeleted,
	"NOT_FOUND":  ReplyNotFound,
	"TOUCHED":    ReplyTouched,
	"OK":         ReplyOK,
	"END":        ReplyEnd,
}

// Parse consumes one reply of the read/write command path: single-line
// statuses, arithmetic results, VERSION, error lines, and the VALUE/END
// elements of retrieval responses. Retrievals yield one Reply per step:
// each VALUE block separately, then ReplyEnd.
func Parse(buf []byte) (*Reply, int, error) {
	line, n, err := takeLine(buf)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}

	if kind, ok := oneLineReplies[string(line)]; ok {
		return &Reply{Kind: kind}, n, nil
	}

	if lineErr, ok := parseErrorLine(line); ok {
		return nil, n, lineErr
	}

	if bytes.HasPrefix(line, valuePrefix) {
		return parseValue(buf, line, n)
	}

	if bytes.HasPrefix(line, versionPrefix) {
		return &Reply{Kind: ReplyVersion, Text: string(line[len(versionPrefix):])}, n, nil
	}

	if len(line) > 0 && isDigit(line[0]) {
		num, numErr := protocol.ParseUint(line)
		if numErr != nil {
			return nil, 0, numErr
		}
		return &Reply{Kind: ReplyNumber, Number: num}, n, nil
	}

	return nil, 0, &protocol.ParseError{Message: "unrecognized response line: " + previewLine(line)}
}

// parseValue handles one VALUE block:
//
//	VALUE <key> <flags> <bytecount> [<cas>]\r\n<payload>\r\n
//
// The payload is consumed by byte count, never by line scanning: embedded
// CRLF sequences inside the payload are data, not protocol syntax.
func parseValue(buf, line []byte, lineLen int) (*Reply, int, error) {
	fields := splitFields(line[len(valuePrefix):])
	if len(fields) < 3 || len(fields) > 4 {
		return nil, 0, &protocol.ParseError{Message: "malformed VALUE line: " + previewLine(line)}
	}

	key := string(fields[0])
	if !protocol.IsValidKey(key) {
		return nil, 0, &protocol.ParseError{Message: "invalid key in VALUE line"}
	}

	flags, err := protocol.ParseUint32(fields[1])
	if err != nil {
		return nil, 0, err
	}

	size, err := protocol.ParseUint(fields[2])
	if err != nil {
		return nil, 0, err
	}
	if size > maxDataBlock {
		return nil, 0, &protocol.ParseError{Message: "value size exceeds protocol maximum"}
	}

	value := &Value{Key: key, Flags: flags}
	if len(fields) == 4 {
		cas, err := protocol.ParseUint(fields[3])
		if err != nil {
			return nil, 0, err
		}
		value.CAS = cas
		value.HasCAS = true
	}

	total := lineLen + int(size) + len(crlfBytes)
	if len(buf) < total {
		return nil, 0, nil
	}
	if !bytes.Equal(buf[lineLen+int(size):total], crlfBytes) {
		return nil, 0, &protocol.ParseError{Message: "missing CRLF after value payload"}
	}

	// Copy the payload: the reply outlives the accumulation buffer.
	value.Data = append([]byte(nil), buf[lineLen:lineLen+int(size)]...)

	return &Reply{Kind: ReplyValue, Value: value}, total, nil
}

// ParseStats consumes one reply of a stats response: a STAT line, the END
// terminator, or an error line.
func ParseStats(buf []byte) (*Reply, int, error) {
	line, n, err := takeLine(buf)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}

	if bytes.Equal(line, endLine) {
		return &Reply{Kind: ReplyEnd}, n, nil
	}

	if lineErr, ok := parseErrorLine(line); ok {
		return nil, n, lineErr
	}

	if bytes.HasPrefix(line, statPrefix) {
		rest := line[len(statPrefix):]
		sep := bytes.IndexByte(rest, ' ')
		if sep <= 0 || sep == len(rest)-1 {
			return nil, 0, &protocol.ParseError{Message: "malformed STAT line: " + previewLine(line)}
		}
		// the value may itself contain spaces
		return &Reply{
			Kind: ReplyStat,
			Stat: Stat{Name: string(rest[:sep]), Value: string(rest[sep+1:])},
		}, n, nil
	}

	return nil, 0, &protocol.ParseError{Message: "unrecognized stats line: " + previewLine(line)}
}

// ParseMetadump consumes one reply of an lru_crawler metadump response: a key
// entry, the END terminator, or one of the crawler's own error tokens. BUSY
// and BADCLASS exist only in this context; elsewhere those tokens are
// unrecognized input.
func ParseMetadump(buf []byte) (*Reply, int, error) {
	line, n, err := takeLine(buf)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}

	if bytes.Equal(line, endLine) {
		return &Reply{Kind: ReplyEnd}, n, nil
	}

	if bytes.HasPrefix(line, busyPrefix) {
		return nil, n, fmt.Errorf("%w: %s", protocol.ErrBusy, line[len(busyPrefix):])
	}
	if bytes.HasPrefix(line, badClassPrefix) {
		return nil, n, fmt.Errorf("%w: %s", protocol.ErrBadClass, line[len(badClassPrefix):])
	}

	if lineErr, ok := parseErrorLine(line); ok {
		return nil, n, lineErr
	}

	meta, err := parseMetadumpEntry(line)
	if err != nil {
		return nil, 0, err
	}
	return &Reply{Kind: ReplyMetaEntry, Meta: meta}, n, nil
}

// parseMetadumpEntry parses one metadump line of the form:
//
//	key=<urlencoded> exp=<ts> la=<ts> cas=<id> fetch=<yes|no> cls=<id> size=<bytes>
func parseMetadumpEntry(line []byte) (*KeyMetadata, error) {
	meta := &KeyMetadata{}
	sawKey := false

	for _, field := range splitFields(line) {
		name, val, ok := bytes.Cut(field, []byte("="))
		if !ok {
			return nil, &protocol.ParseError{Message: "malformed metadump field: " + previewLine(line)}
		}

		var err error
		switch string(name) {
		case "key":
			// metadump keys are urlencoded on the wire
			decoded, decErr := url.QueryUnescape(string(val))
			if decErr != nil {
				return nil, &protocol.ParseError{Message: "malformed metadump key", Err: decErr}
			}
			meta.Key = decoded
			sawKey = true
		case "exp":
			meta.Expiration, err = protocol.ParseInt(val)
		case "la":
			meta.LastAccessed, err = protocol.ParseUint(val)
		case "cas":
			meta.CAS, err = protocol.ParseUint(val)
		case "fetch":
			switch string(val) {
			case "yes":
				meta.Fetched = true
			case "no":
				meta.Fetched = false
			default:
				err = &protocol.ParseError{Message: "malformed metadump fetch field"}
			}
		case "cls":
			meta.ClassID, err = protocol.ParseUint32(val)
		case "size":
			meta.Size, err = protocol.ParseUint32(val)
		default:
			// Unknown fields are tolerated for forward compatibility.
		}
		if err != nil {
			return nil, err
		}
	}

	if !sawKey {
		return nil, &protocol.ParseError{Message: "metadump entry without key: " + previewLine(line)}
	}
	return meta, nil
}

// splitFields splits a line on single spaces, rejecting nothing: empty
// fields from doubled spaces surface as zero-length tokens and fail numeric
// parsing downstream.
func splitFields(line []byte) [][]byte {
	if len(line) == 0 {
		return nil
	}
	return bytes.Split(line, []byte(protocol.Space))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// previewLine truncates a line for inclusion in error messages.
func previewLine(line []byte) string {
	const max = 64
	if len(line) > max {
		return string(line[:max]) + "..."
	}
	return string(line)
}
