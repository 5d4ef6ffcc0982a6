// Package ascii implements the classic line-oriented memcached text protocol:
// command serialization and incremental response parsing.
//
// The parser is resumable: each Parse* function inspects a caller-owned
// accumulation buffer and either consumes one complete reply, asks for more
// bytes, or reports the buffer as malformed. It never blocks and never
// panics on truncated or garbled input.
package ascii

// ReplyKind identifies the variant of a parsed reply.
type ReplyKind uint8

const (
	// ReplyStored: the value was stored.
	ReplyStored ReplyKind = iota

	// ReplyNotStored: a conditional store was refused.
	ReplyNotStored

	// ReplyExists: CAS conflict.
	ReplyExists

	// ReplyDeleted: the key was deleted.
	ReplyDeleted

	// ReplyNotFound: the key does not exist.
	ReplyNotFound

	// ReplyTouched: the key's TTL was updated.
	ReplyTouched

	// ReplyOK: acknowledgement for administrative commands (flush_all).
	ReplyOK

	// ReplyEnd: terminator of a multi-line response.
	ReplyEnd

	// ReplyValue: one VALUE block of a retrieval response.
	ReplyValue

	// ReplyNumber: result of an increment/decrement.
	ReplyNumber

	// ReplyVersion: VERSION line.
	ReplyVersion

	// ReplyStat: one STAT line of a stats response.
	ReplyStat

	// ReplyMetaEntry: one key entry of an lru_crawler metadump.
	ReplyMetaEntry
)

var replyKindNames = map[ReplyKind]string{
	ReplyStored:    "STORED",
	ReplyNotStored: "NOT_STORED",
	ReplyExists:    "EXISTS",
	ReplyDeleted:   "DELETED",
	ReplyNotFound:  "NOT_FOUND",
	ReplyTouched:   "TOUCHED",
	ReplyOK:        "OK",
	ReplyEnd:       "END",
	ReplyValue:     "VALUE",
	ReplyNumber:    "NUMBER",
	ReplyVersion:   "VERSION",
	ReplyStat:      "STAT",
	ReplyMetaEntry: "METADUMP_ENTRY",
}

func (k ReplyKind) String() string {
	if name, ok := replyKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Value is the payload of a ReplyValue: one item echoed back by the server.
// The key is echoed on the VALUE line, which lets multi-key retrievals be
// associated back to the request by key rather than by position.
type Value struct {
	Key   string
	Flags uint32
	Data  []byte

	// CAS is the compare-and-swap token, present only for gets-style
	// retrievals. HasCAS distinguishes "absent" from "zero".
	CAS    uint64
	HasCAS bool
}

// Stat is one name/value pair of a stats response.
type Stat struct {
	Name  string
	Value string
}

// KeyMetadata is one entry of an lru_crawler metadump response.
type KeyMetadata struct {
	Key          string
	Expiration   int64 // unix timestamp, -1 for never
	LastAccessed uint64
	CAS          uint64
	Fetched      bool
	ClassID      uint32
	Size         uint32
}

// Reply is the typed result of one parser step. Kind selects which of the
// payload fields is meaningful. A Reply is owned by the caller of Parse; its
// byte slices are copies and do not alias the accumulation buffer.
type Reply struct {
	Kind ReplyKind

	Value  *Value       // ReplyValue
	Number uint64       // ReplyNumber
	Text   string       // ReplyVersion
	Stat   Stat         // ReplyStat
	Meta   *KeyMetadata // ReplyMetaEntry
}
