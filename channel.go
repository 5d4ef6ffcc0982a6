package memcache

import (
	"context"
	"time"
)

// Channel is the abstract duplex byte stream the engine drives. The
// surrounding transport layer supplies it (see Dial for the built-in
// TCP/unix/UDP adapters); the engine never constructs or tears down
// channels itself.
//
// Read returning (0, io.EOF) signals a confirmed closure; the engine treats
// it as terminal, never as "try again".
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// deadlineChannel is implemented by channels that support I/O deadlines
// (every net.Conn does). The engine propagates context deadlines through it
// when available.
type deadlineChannel interface {
	SetDeadline(t time.Time) error
}

// applyDeadline maps the context deadline onto the channel, clearing any
// previous deadline when the context has none.
func (c *Client) applyDeadline(ctx context.Context) {
	dc, ok := c.ch.(deadlineChannel)
	if !ok {
		return
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = dc.SetDeadline(deadline)
	} else {
		_ = dc.SetDeadline(time.Time{})
	}
}
