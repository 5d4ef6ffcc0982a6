package meta

// CmdType represents a meta protocol command (2 characters).
type CmdType string

// FlagType represents a single-character flag identifier.
type FlagType byte

// StatusType represents a response status code.
type StatusType string

// Command codes
const (
	// CmdGet retrieves item data and metadata.
	// Wire format: mg <key> <flags>*\r\n
	CmdGet CmdType = "mg"

	// CmdSet stores data; storage mode (set/add/replace/append/prepend) is
	// selected with the M flag.
	// Wire format: ms <key> <size> <flags>*\r\n<data>\r\n
	CmdSet CmdType = "ms"

	// CmdDelete deletes or invalidates an item.
	// Wire format: md <key> <flags>*\r\n
	CmdDelete CmdType = "md"

	// CmdArithmetic performs atomic increment/decrement.
	// Wire format: ma <key> <flags>*\r\n
	CmdArithmetic CmdType = "ma"

	// CmdDebug returns human-readable internal metadata for a key.
	CmdDebug CmdType = "me"

	// CmdNoOp returns a static MN response. Used as an end marker when
	// pipelining quiet commands.
	// Wire format: mn\r\n
	CmdNoOp CmdType = "mn"
)

// Response status codes
const (
	// StatusHD: success with no value data (stored / hit without v flag).
	StatusHD StatusType = "HD"

	// StatusVA: success, value data follows.
	StatusVA StatusType = "VA"

	// StatusEN: miss.
	StatusEN StatusType = "EN"

	// StatusNF: not found, for operations that require an existing item.
	StatusNF StatusType = "NF"

	// StatusNS: not stored (mode condition not met).
	StatusNS StatusType = "NS"

	// StatusEX: CAS mismatch.
	StatusEX StatusType = "EX"

	// StatusMN: response to the mn command.
	StatusMN StatusType = "MN"

	// StatusME: debug information response.
	StatusME StatusType = "ME"
)

// Request flags. A flag is a single letter, optionally followed immediately
// by a token (e.g. T60, Oabc123).
const (
	// Universal
	FlagBase64Key FlagType = 'b' // key is base64-encoded
	FlagReturnKey FlagType = 'k' // echo key in response
	FlagOpaque    FlagType = 'O' // opaque token, echoed back (max 32 bytes)
	FlagQuiet     FlagType = 'q' // suppress nominal responses

	// Metadata retrieval (mg, ma)
	FlagReturnCAS         FlagType = 'c'
	FlagReturnClientFlags FlagType = 'f'
	FlagReturnSize        FlagType = 's'
	FlagReturnTTL         FlagType = 't'
	FlagReturnValue       FlagType = 'v'
	FlagReturnHit         FlagType = 'h'
	FlagReturnLastAccess  FlagType = 'l'

	// Modification
	FlagCAS         FlagType = 'C' // compare-and-swap token
	FlagExplicitCAS FlagType = 'E' // set explicit CAS value
	FlagTTL         FlagType = 'T' // TTL in seconds, 0 = infinite
	FlagClientFlags FlagType = 'F' // client flags (uint32)

	// Get-specific
	FlagNoLRUBump FlagType = 'u'
	FlagRecache   FlagType = 'R' // win for recache if TTL below token
	FlagVivify    FlagType = 'N' // auto-create stub on miss with TTL token

	// Set/delete-specific
	FlagMode       FlagType = 'M' // storage or arithmetic mode token
	FlagInvalidate FlagType = 'I' // mark stale instead of storing/deleting

	// Arithmetic-specific
	FlagDelta        FlagType = 'D'
	FlagInitialValue FlagType = 'J'

	// Delete-specific
	FlagRemoveValue FlagType = 'x'
)

// Response-only flags, generated by the server.
const (
	FlagWin        FlagType = 'W' // client won the right to recache
	FlagStale      FlagType = 'X' // item is stale
	FlagAlreadyWon FlagType = 'Z' // another client already holds the win
)

// Storage modes (FlagMode tokens for ms)
const (
	ModeSet     = "S"
	ModeAdd     = "E"
	ModeReplace = "R"
	ModeAppend  = "A"
	ModePrepend = "P"
)

// Arithmetic modes (FlagMode tokens for ma)
const (
	ModeIncrement = "I"
	ModeDecrement = "D"
)
