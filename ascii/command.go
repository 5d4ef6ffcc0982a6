package ascii

import (
	"strconv"

	"github.com/hexwren/memcache/protocol"
)

// Op identifies a classic-dialect command.
type Op uint8

const (
	OpGet Op = iota
	OpGets
	OpGat
	OpSet
	OpAdd
	OpReplace
	OpAppend
	OpPrepend
	OpDelete
	OpIncr
	OpDecr
	OpTouch
	OpFlushAll
	OpStats
	OpVersion
	OpMetadump
)

var opNames = map[Op]string{
	OpGet:      "get",
	OpGets:     "gets",
	OpGat:      "gat",
	OpSet:      "set",
	OpAdd:      "add",
	OpReplace:  "replace",
	OpAppend:   "append",
	OpPrepend:  "prepend",
	OpDelete:   "delete",
	OpIncr:     "incr",
	OpDecr:     "decr",
	OpTouch:    "touch",
	OpFlushAll: "flush_all",
	OpStats:    "stats",
	OpVersion:  "version",
	OpMetadump: "lru_crawler metadump",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Command is a tagged variant over the classic-dialect operations. Each Op
// uses the subset of fields it needs; the rest are ignored by Append.
//
// A Command is constructed per call and discarded after encoding.
type Command struct {
	Op Op

	// Keys holds the target keys. Retrievals (get, gets, gat) accept several
	// space-separated keys on one request line; delete does not, so a
	// multi-key delete is encoded as one line per key. Key order is always
	// preserved: retrieval responses are matched back by the key echoed on
	// the VALUE line.
	Keys []string

	Value []byte
	Flags uint32

	// TTL in seconds. 0 means never expire. Negative TTLs are rejected
	// before encoding.
	TTL int64

	// Delta for incr/decr.
	Delta uint64

	// Delay in seconds for flush_all. Zero omits the argument.
	Delay int64

	// Arg is the optional stats argument (items, slabs, sizes, settings)
	// or the metadump class list ("all" when empty).
	Arg string

	// NoReply suppresses the server's acknowledgement line. The engine must
	// not read a response after a NoReply command.
	NoReply bool
}

const noreplyToken = " noreply"

// Append serializes the command and appends the wire bytes to dst.
// It is pure: the same command always yields the same bytes. Malformed
// commands (bad keys, negative TTLs, missing keys) fail with an
// InvalidArgumentError before any I/O can happen.
func (c *Command) Append(dst []byte) ([]byte, error) {
	switch c.Op {
	case OpGet, OpGets, OpGat:
		return c.appendRetrieval(dst)
	case OpSet, OpAdd, OpReplace, OpAppend, OpPrepend:
		return c.appendStorage(dst)
	case OpDelete:
		return c.appendDelete(dst)
	case OpIncr, OpDecr:
		return c.appendArithmetic(dst)
	case OpTouch:
		return c.appendTouch(dst)
	case OpFlushAll:
		return c.appendFlushAll(dst)
	case OpStats:
		dst = append(dst, "stats"...)
		if c.Arg != "" {
			dst = append(dst, ' ')
			dst = append(dst, c.Arg...)
		}
		return appendCRLF(dst), nil
	case OpVersion:
		return appendCRLF(append(dst, "version"...)), nil
	case OpMetadump:
		dst = append(dst, "lru_crawler metadump "...)
		if c.Arg == "" {
			dst = append(dst, "all"...)
		} else {
			dst = append(dst, c.Arg...)
		}
		return appendCRLF(dst), nil
	default:
		return nil, &protocol.InvalidArgumentError{Message: "unknown command"}
	}
}

// Encode serializes the command into a fresh byte slice.
func (c *Command) Encode() ([]byte, error) {
	return c.Append(nil)
}

func (c *Command) appendRetrieval(dst []byte) ([]byte, error) {
	if len(c.Keys) == 0 {
		return nil, &protocol.InvalidArgumentError{Message: "no keys"}
	}
	if err := validateKeys(c.Keys); err != nil {
		return nil, err
	}

	dst = append(dst, c.Op.String()...)
	if c.Op == OpGat {
		if c.TTL < 0 {
			return nil, errNegativeTTL
		}
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, c.TTL, 10)
	}
	for _, key := range c.Keys {
		dst = append(dst, ' ')
		dst = append(dst, key...)
	}
	return appendCRLF(dst), nil
}

func (c *Command) appendStorage(dst []byte) ([]byte, error) {
	key, err := c.singleKey()
	if err != nil {
		return nil, err
	}
	if c.TTL < 0 {
		return nil, errNegativeTTL
	}

	// <cmd> <key> <flags> <ttl> <bytecount> [noreply]\r\n<value>\r\n
	dst = append(dst, c.Op.String()...)
	dst = append(dst, ' ')
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(c.Flags), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, c.TTL, 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(len(c.Value)), 10)
	if c.NoReply {
		dst = append(dst, noreplyToken...)
	}
	dst = appendCRLF(dst)
	dst = append(dst, c.Value...)
	return appendCRLF(dst), nil
}

func (c *Command) appendDelete(dst []byte) ([]byte, error) {
	if len(c.Keys) == 0 {
		return nil, &protocol.InvalidArgumentError{Message: "no keys"}
	}
	if err := validateKeys(c.Keys); err != nil {
		return nil, err
	}

	// deletion takes exactly one key per request line
	for _, key := range c.Keys {
		dst = append(dst, "delete "...)
		dst = append(dst, key...)
		if c.NoReply {
			dst = append(dst, noreplyToken...)
		}
		dst = appendCRLF(dst)
	}
	return dst, nil
}

func (c *Command) appendArithmetic(dst []byte) ([]byte, error) {
	key, err := c.singleKey()
	if err != nil {
		return nil, err
	}

	dst = append(dst, c.Op.String()...)
	dst = append(dst, ' ')
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, c.Delta, 10)
	if c.NoReply {
		dst = append(dst, noreplyToken...)
	}
	return appendCRLF(dst), nil
}

func (c *Command) appendTouch(dst []byte) ([]byte, error) {
	key, err := c.singleKey()
	if err != nil {
		return nil, err
	}
	if c.TTL < 0 {
		return nil, errNegativeTTL
	}

	dst = append(dst, "touch "...)
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, c.TTL, 10)
	if c.NoReply {
		dst = append(dst, noreplyToken...)
	}
	return appendCRLF(dst), nil
}

func (c *Command) appendFlushAll(dst []byte) ([]byte, error) {
	if c.Delay < 0 {
		return nil, &protocol.InvalidArgumentError{Message: "negative flush delay"}
	}

	dst = append(dst, "flush_all"...)
	if c.Delay > 0 {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, c.Delay, 10)
	}
	if c.NoReply {
		dst = append(dst, noreplyToken...)
	}
	return appendCRLF(dst), nil
}

func (c *Command) singleKey() (string, error) {
	if len(c.Keys) != 1 {
		return "", &protocol.InvalidArgumentError{Message: "exactly one key required"}
	}
	if err := protocol.ValidateKey(c.Keys[0]); err != nil {
		return "", err
	}
	return c.Keys[0], nil
}

func validateKeys(keys []string) error {
	for _, key := range keys {
		if err := protocol.ValidateKey(key); err != nil {
			return err
		}
	}
	return nil
}

func appendCRLF(dst []byte) []byte {
	return append(dst, protocol.CRLF...)
}

var errNegativeTTL = &protocol.InvalidArgumentError{Message: "negative TTL"}
