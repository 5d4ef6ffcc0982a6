package memcache

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/hexwren/memcache/meta"
	"github.com/hexwren/memcache/protocol"
)

// MetaExec pipelines several meta requests over a single write and collects
// the responses, terminated by an mn marker. The result slice is aligned
// with reqs; entries whose response was suppressed by the quiet flag are
// nil.
//
// Responses are matched back to requests through the opaque token. A request
// without an O flag is encoded with a generated one; the caller's request is
// never modified. Requests that carry their own token keep it, which means
// callers must not reuse a token within a batch.
func (c *Client) MetaExec(ctx context.Context, reqs ...*meta.Request) ([]*meta.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	byOpaque := make(map[string]int, len(reqs))
	var payload []byte
	for i, req := range reqs {
		if req.Command == meta.CmdNoOp {
			return nil, &protocol.InvalidArgumentError{Message: "mn is managed by the batch itself"}
		}
		enc := req
		opaque, ok := req.FlagToken(meta.FlagOpaque)
		if !ok {
			opaque = newOpaqueToken()
			flags := append(append([]meta.Flag(nil), req.Flags...), meta.Flag{Type: meta.FlagOpaque, Token: opaque})
			enc = meta.NewRequest(req.Command, req.Key, req.Data, flags...)
		}
		if _, dup := byOpaque[opaque]; dup {
			return nil, &protocol.InvalidArgumentError{Message: "duplicate opaque token in batch: " + opaque}
		}
		byOpaque[opaque] = i

		var err error
		payload, err = enc.Append(payload)
		if err != nil {
			return nil, err
		}
	}
	noop := meta.NewRequest(meta.CmdNoOp, "", nil)
	payload, err := noop.Append(payload)
	if err != nil {
		return nil, err
	}

	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}

	results := make([]*meta.Response, len(reqs))
	for {
		resp, err := receive(ctx, c, meta.Parse)
		if err != nil {
			c.metrics.errors.Inc()
			return nil, err
		}
		if resp.Status == meta.StatusMN {
			return results, nil
		}
		opaque, ok := resp.Opaque()
		if !ok {
			return nil, c.batchMatchFailure("response without opaque token")
		}
		idx, ok := byOpaque[opaque]
		if !ok {
			return nil, c.batchMatchFailure("response with unknown opaque token: " + opaque)
		}
		if results[idx] != nil {
			return nil, c.batchMatchFailure("duplicate response for opaque token: " + opaque)
		}
		results[idx] = resp
	}
}

// batchMatchFailure breaks the connection: once a response cannot be matched
// to its request the pipeline position is lost for good.
func (c *Client) batchMatchFailure(msg string) error {
	err := &protocol.ParseError{Message: msg}
	c.fail(err)
	return err
}

func newOpaqueToken() string {
	// 32 hex characters, exactly the protocol's opaque limit.
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
