package meta

import (
	"bytes"

	"github.com/hexwren/memcache/protocol"
)

// Incremental response parsing. Same step convention as the classic parser:
//
//	resp, n, nil    one complete response occupying buf[:n]
//	nil, 0, nil     need more bytes
//	nil, n, err     well-formed error line mapped to the taxonomy
//	nil, 0, err     malformed input (ParseError)
//
// Parse never modifies buf and is idempotent for an unmodified buffer.

var (
	crlfBytes         = []byte(protocol.CRLF)
	errorLine         = []byte("ERROR")
	clientErrorPrefix = []byte("CLIENT_ERROR ")
	serverErrorPrefix = []byte("SERVER_ERROR ")
)

// maxDataBlock mirrors the classic parser's cap on declared payload sizes.
const maxDataBlock = 1 << 30

var knownStatuses = map[string]StatusType{
	"HD": StatusHD,
	"VA": StatusVA,
	"EN": StatusEN,
	"NF": StatusNF,
	"NS": StatusNS,
	"EX": StatusEX,
	"MN": StatusMN,
	"ME": StatusME,
}

// Parse consumes one meta response from buf:
//
//	<code> <flags>*\r\n
//	VA <size> <flags>*\r\n<payload>\r\n
//
// VA payloads are consumed strictly by byte count; CRLF bytes inside the
// payload are data.
func Parse(buf []byte) (*Response, int, error) {
	line, n, err := takeLine(buf)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}

	switch {
	case bytes.Equal(line, errorLine):
		return nil, n, protocol.ErrNonexistentCommand
	case bytes.HasPrefix(line, clientErrorPrefix):
		return nil, n, &protocol.ClientError{Message: string(line[len(clientErrorPrefix):])}
	case bytes.HasPrefix(line, serverErrorPrefix):
		return nil, n, &protocol.ServerError{Message: string(line[len(serverErrorPrefix):])}
	}

	fields := bytes.Split(line, []byte(protocol.Space))
	status, ok := knownStatuses[string(fields[0])]
	if !ok {
		return nil, 0, &protocol.ParseError{Message: "unrecognized response code: " + preview(line)}
	}

	resp := &Response{Status: status}

	switch status {
	case StatusMN:
		if len(fields) > 1 {
			return nil, 0, &protocol.ParseError{Message: "unexpected tokens after MN"}
		}
		return resp, n, nil

	case StatusME:
		// ME <key> <key=value>*; keep everything after the code verbatim
		resp.Data = append([]byte(nil), line[len(fields[0]):]...)
		resp.Data = bytes.TrimPrefix(resp.Data, []byte(protocol.Space))
		return resp, n, nil

	case StatusVA:
		if len(fields) < 2 {
			return nil, 0, &protocol.ParseError{Message: "VA response missing size"}
		}
		size, err := protocol.ParseUint(fields[1])
		if err != nil {
			return nil, 0, err
		}
		if size > maxDataBlock {
			return nil, 0, &protocol.ParseError{Message: "value size exceeds protocol maximum"}
		}
		if err := parseFlags(resp, fields[2:]); err != nil {
			return nil, 0, err
		}

		total := n + int(size) + len(crlfBytes)
		if len(buf) < total {
			return nil, 0, nil
		}
		if !bytes.Equal(buf[n+int(size):total], crlfBytes) {
			return nil, 0, &protocol.ParseError{Message: "missing CRLF after value payload"}
		}
		resp.Data = append([]byte(nil), buf[n:n+int(size)]...)
		return resp, total, nil

	default: // HD, EN, NF, NS, EX
		if err := parseFlags(resp, fields[1:]); err != nil {
			return nil, 0, err
		}
		return resp, n, nil
	}
}

func parseFlags(resp *Response, fields [][]byte) error {
	for _, field := range fields {
		if len(field) == 0 {
			return &protocol.ParseError{Message: "empty flag token"}
		}
		flag := Flag{Type: FlagType(field[0])}
		if len(field) > 1 {
			flag.Token = string(field[1:])
		}
		resp.Flags = append(resp.Flags, flag)
	}
	return nil
}

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

func preview(line []byte) string {
	const max = 64
	if len(line) > max {
		return string(line[:max]) + "..."
	}
	return string(line)
}
