package memcache

import (
	"context"
	"errors"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/hexwren/memcache/ascii"
	"github.com/hexwren/memcache/meta"
	"github.com/hexwren/memcache/protocol"
)

// ErrConnectionBroken is returned for any operation attempted after the
// engine marked its channel untrustworthy: a channel or parse failure, or an
// abandoned in-flight read. The engine instance must be discarded and a new
// one created over a fresh channel.
var ErrConnectionBroken = errors.New("memcache: connection is broken, discard the engine")

// defaultReadChunk is the per-read buffer size for filling the accumulation
// buffer.
const defaultReadChunk = 4096

// Client is the protocol engine for a single connection. It drives
// encode → write → read-until-complete cycles over its Channel and owns the
// accumulation buffer for the lifetime of the connection.
//
// A Client is not safe for concurrent use: one connection carries a single
// outstanding request pipeline position. Callers wanting concurrency run
// several engines over separate channels (see Ring).
type Client struct {
	ch      Channel
	buf     []byte // accumulation buffer, compacted after every parse
	scratch []byte
	broken  bool

	// readErr is a channel error that arrived together with data. The bytes
	// are parsed first; the error surfaces when more bytes are needed.
	readErr error

	logger     *zap.Logger
	metrics    *metricsCollector
	compressor *compressor
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for engine-level events. Defaults to a
// no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithCompression enables transparent snappy compression for values of at
// least threshold bytes on Set/Add/Replace, signaled through a reserved
// client-flags bit and undone on reads.
func WithCompression(threshold int) Option {
	return func(c *Client) { c.compressor = &compressor{threshold: threshold} }
}

// WithReadChunkSize sets the per-read buffer size.
func WithReadChunkSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.scratch = make([]byte, size)
		}
	}
}

// New creates an engine over ch. The engine assumes exclusive ownership of
// the channel's read side.
func New(ch Channel, opts ...Option) *Client {
	c := &Client{
		ch:      ch,
		scratch: make([]byte, defaultReadChunk),
		logger:  zap.NewNop(),
		metrics: newMetricsCollector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Broken reports whether the engine refuses further operations.
func (c *Client) Broken() bool {
	return c.broken
}

// fail marks the connection untrustworthy.
func (c *Client) fail(reason error) {
	if !c.broken {
		c.broken = true
		c.logger.Debug("memcache: connection marked broken", zap.Error(reason))
	}
}

// send writes one encoded request. A short write leaves the stream in an
// unknown position, so it breaks the connection like any other write error.
func (c *Client) send(ctx context.Context, payload []byte) error {
	if c.broken {
		return ErrConnectionBroken
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.applyDeadline(ctx)

	n, err := c.ch.Write(payload)
	if err != nil {
		cerr := &protocol.ChannelError{Op: "write", Err: err}
		c.fail(cerr)
		return cerr
	}
	if n < len(payload) {
		cerr := &protocol.ChannelError{Op: "write", Err: io.ErrShortWrite}
		c.fail(cerr)
		return cerr
	}

	c.metrics.bytesWritten.Add(int64(n))
	return nil
}

// stepFunc is one incremental parser step: ascii.Parse, ascii.ParseStats,
// ascii.ParseMetadump or meta.Parse.
type stepFunc[R any] func(buf []byte) (*R, int, error)

// receive loops read → parse until step resolves one complete reply.
// Consumed bytes are compacted out of the accumulation buffer before
// returning, so pipelined bytes already buffered stay available for the
// next call.
func receive[R any](ctx context.Context, c *Client, step stepFunc[R]) (*R, error) {
	if c.broken {
		return nil, ErrConnectionBroken
	}

	for {
		if len(c.buf) > 0 {
			reply, n, err := step(c.buf)
			if err != nil {
				c.discard(n)
				if protocol.ShouldDiscardConnection(err) {
					c.fail(err)
				}
				return nil, err
			}
			if reply != nil {
				c.discard(n)
				return reply, nil
			}
		}
		if err := c.fill(ctx); err != nil {
			return nil, err
		}
	}
}

// fill reads more bytes into the accumulation buffer. A Read that returns
// data alongside an error (permitted by the io.Reader contract) is progress:
// the bytes go into the buffer and the error is held back until the parse
// loop actually runs dry.
func (c *Client) fill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		// The response is abandoned mid-read; whatever arrives later
		// belongs to nobody.
		c.fail(err)
		return err
	}
	if err := c.readErr; err != nil {
		c.fail(err)
		return err
	}
	c.applyDeadline(ctx)

	n, err := c.ch.Read(c.scratch)
	if n > 0 {
		c.buf = append(c.buf, c.scratch[:n]...)
		c.metrics.bytesRead.Add(int64(n))
	}
	if err != nil {
		if err == io.EOF {
			err = protocol.ErrChannelClosed
		}
		cerr := &protocol.ChannelError{Op: "read", Err: err}
		if n > 0 {
			c.readErr = cerr
			return nil
		}
		c.fail(cerr)
		return cerr
	}
	return nil
}

// discard drops n consumed bytes from the front of the accumulation buffer,
// keeping memory bounded under pipelining.
func (c *Client) discard(n int) {
	if n <= 0 {
		return
	}
	c.buf = c.buf[:copy(c.buf, c.buf[n:])]
}

func (c *Client) unexpectedReply(kind ascii.ReplyKind) error {
	err := &protocol.ParseError{Message: "unexpected reply: " + kind.String()}
	c.fail(err)
	return err
}

// --- Retrieval ---

// Get retrieves a single item. A miss is not an error: the returned item has
// Found == false.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	return c.retrieveOne(ctx, ascii.OpGet, 0, key)
}

// Gets retrieves a single item along with its CAS token.
func (c *Client) Gets(ctx context.Context, key string) (Item, error) {
	return c.retrieveOne(ctx, ascii.OpGets, 0, key)
}

// GetAndTouch retrieves a single item and updates its TTL in one round trip.
func (c *Client) GetAndTouch(ctx context.Context, key string, ttl int64) (Item, error) {
	return c.retrieveOne(ctx, ascii.OpGat, ttl, key)
}

func (c *Client) retrieveOne(ctx context.Context, op ascii.Op, ttl int64, key string) (Item, error) {
	cmd := ascii.Command{Op: op, Keys: []string{key}, TTL: ttl}
	payload, err := cmd.Encode()
	if err != nil {
		return Item{}, err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return Item{}, err
	}

	item := Item{Key: key}
	for {
		reply, err := receive(ctx, c, ascii.Parse)
		if err != nil {
			c.metrics.errors.Inc()
			return Item{}, err
		}
		switch reply.Kind {
		case ascii.ReplyValue:
			if err := c.itemFromValue(&item, reply.Value); err != nil {
				return Item{}, err
			}
		case ascii.ReplyEnd:
			c.metrics.recordGet(item.Found)
			return item, nil
		default:
			return Item{}, c.unexpectedReply(reply.Kind)
		}
	}
}

// Scan issues one multi-key retrieval and yields hits lazily as the server
// emits them, in server order, terminated by the END line. Misses produce no
// entry at all: callers infer them by absence. The number of hits is unknown
// until END, which is why this is an iterator and not a pre-sized
// collection.
//
// Abandoning the iteration before END leaves unread responses on the wire,
// so it invalidates the engine, as does any yielded error.
func (c *Client) Scan(ctx context.Context, keys ...string) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		cmd := ascii.Command{Op: ascii.OpGet, Keys: keys}
		payload, err := cmd.Encode()
		if err != nil {
			yield(Item{}, err)
			return
		}
		if err := c.send(ctx, payload); err != nil {
			c.metrics.errors.Inc()
			yield(Item{}, err)
			return
		}

		for {
			reply, err := receive(ctx, c, ascii.Parse)
			if err != nil {
				c.metrics.errors.Inc()
				yield(Item{}, err)
				return
			}
			switch reply.Kind {
			case ascii.ReplyValue:
				item := Item{Key: reply.Value.Key}
				if err := c.itemFromValue(&item, reply.Value); err != nil {
					yield(Item{}, err)
					return
				}
				c.metrics.recordGet(true)
				if !yield(item, nil) {
					c.fail(context.Canceled)
					return
				}
			case ascii.ReplyEnd:
				return
			default:
				yield(Item{}, c.unexpectedReply(reply.Kind))
				return
			}
		}
	}
}

// GetMulti retrieves several keys in one request and returns the hits in
// server order. Missing keys are simply absent from the result.
func (c *Client) GetMulti(ctx context.Context, keys ...string) ([]Item, error) {
	var items []Item
	for item, err := range c.Scan(ctx, keys...) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) itemFromValue(item *Item, value *ascii.Value) error {
	item.Found = true
	item.Flags = value.Flags
	item.Value = value.Data
	item.CAS = value.CAS
	item.HasCAS = value.HasCAS
	if c.compressor != nil {
		if err := c.compressor.decode(item); err != nil {
			c.metrics.errors.Inc()
			return err
		}
	}
	return nil
}

// --- Storage ---

// Set stores an item unconditionally.
func (c *Client) Set(ctx context.Context, item Item) error {
	return c.store(ctx, ascii.OpSet, item, false)
}

// Add stores an item only if the key does not exist yet; ErrNotStored
// otherwise.
func (c *Client) Add(ctx context.Context, item Item) error {
	return c.store(ctx, ascii.OpAdd, item, false)
}

// Replace stores an item only if the key already exists; ErrNotStored
// otherwise.
func (c *Client) Replace(ctx context.Context, item Item) error {
	return c.store(ctx, ascii.OpReplace, item, false)
}

// AppendValue appends bytes to an existing value; ErrNotStored when the key
// is absent.
func (c *Client) AppendValue(ctx context.Context, item Item) error {
	return c.store(ctx, ascii.OpAppend, item, true)
}

// PrependValue prepends bytes to an existing value; ErrNotStored when the
// key is absent.
func (c *Client) PrependValue(ctx context.Context, item Item) error {
	return c.store(ctx, ascii.OpPrepend, item, true)
}

func (c *Client) store(ctx context.Context, op ascii.Op, item Item, raw bool) error {
	value, flags := item.Value, item.Flags
	// Concatenating onto a compressed value would corrupt it, so
	// append/prepend always bypass compression.
	if c.compressor != nil && !raw {
		value, flags = c.compressor.encode(value, flags)
	}

	cmd := ascii.Command{Op: op, Keys: []string{item.Key}, Value: value, Flags: flags, TTL: item.TTL}
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return err
	}

	reply, err := receive(ctx, c, ascii.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return err
	}
	switch reply.Kind {
	case ascii.ReplyStored:
		c.metrics.stores.Inc()
		return nil
	case ascii.ReplyNotStored:
		return protocol.ErrNotStored
	case ascii.ReplyExists:
		return protocol.ErrExists
	case ascii.ReplyNotFound:
		return protocol.ErrNotFound
	default:
		return c.unexpectedReply(reply.Kind)
	}
}

// SetMulti pipelines one set per item and reads the acknowledgements in
// issue order. It returns per-key failures; a transport or parse failure
// aborts the whole batch.
func (c *Client) SetMulti(ctx context.Context, items []Item) (map[string]error, error) {
	return c.storeMulti(ctx, ascii.OpSet, items)
}

// AddMulti pipelines one add per item; keys that already exist land in the
// per-key error map as ErrNotStored.
func (c *Client) AddMulti(ctx context.Context, items []Item) (map[string]error, error) {
	return c.storeMulti(ctx, ascii.OpAdd, items)
}

func (c *Client) storeMulti(ctx context.Context, op ascii.Op, items []Item) (map[string]error, error) {
	var payload []byte
	for _, item := range items {
		value, flags := item.Value, item.Flags
		if c.compressor != nil {
			value, flags = c.compressor.encode(value, flags)
		}
		cmd := ascii.Command{Op: op, Keys: []string{item.Key}, Value: value, Flags: flags, TTL: item.TTL}
		var err error
		payload, err = cmd.Append(payload)
		if err != nil {
			return nil, err
		}
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}

	failed := make(map[string]error)
	for _, item := range items {
		reply, err := receive(ctx, c, ascii.Parse)
		if err != nil {
			if protocol.ShouldDiscardConnection(err) {
				c.metrics.errors.Inc()
				return nil, err
			}
			failed[item.Key] = err
			continue
		}
		switch reply.Kind {
		case ascii.ReplyStored:
			c.metrics.stores.Inc()
		case ascii.ReplyNotStored:
			failed[item.Key] = protocol.ErrNotStored
		case ascii.ReplyExists:
			failed[item.Key] = protocol.ErrExists
		case ascii.ReplyNotFound:
			failed[item.Key] = protocol.ErrNotFound
		default:
			return nil, c.unexpectedReply(reply.Kind)
		}
	}
	return failed, nil
}

// --- Deletion ---

// Delete removes a key; ErrNotFound when it does not exist.
func (c *Client) Delete(ctx context.Context, key string) error {
	cmd := ascii.Command{Op: ascii.OpDelete, Keys: []string{key}}
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return err
	}

	reply, err := receive(ctx, c, ascii.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return err
	}
	switch reply.Kind {
	case ascii.ReplyDeleted:
		c.metrics.deletes.Inc()
		return nil
	case ascii.ReplyNotFound:
		return protocol.ErrNotFound
	default:
		return c.unexpectedReply(reply.Kind)
	}
}

// DeleteNoReply removes a key without waiting for an acknowledgement. The
// engine does not read from the channel at all: the server never sends a
// response line for a noreply command.
func (c *Client) DeleteNoReply(ctx context.Context, key string) error {
	return c.DeleteMultiNoReply(ctx, key)
}

// DeleteMultiNoReply removes several keys with a single pipelined write and
// no reads. Deletion takes one request line per key; key order is preserved.
func (c *Client) DeleteMultiNoReply(ctx context.Context, keys ...string) error {
	cmd := ascii.Command{Op: ascii.OpDelete, Keys: keys, NoReply: true}
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return err
	}
	c.metrics.deletes.Add(int64(len(keys)))
	return nil
}

// --- Arithmetic ---

// Increment atomically adds delta to a numeric value and returns the result;
// ErrNotFound when the key does not exist.
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.arithmetic(ctx, ascii.OpIncr, key, delta)
}

// Decrement atomically subtracts delta from a numeric value, saturating at
// zero, and returns the result; ErrNotFound when the key does not exist.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.arithmetic(ctx, ascii.OpDecr, key, delta)
}

func (c *Client) arithmetic(ctx context.Context, op ascii.Op, key string, delta uint64) (uint64, error) {
	cmd := ascii.Command{Op: op, Keys: []string{key}, Delta: delta}
	payload, err := cmd.Encode()
	if err != nil {
		return 0, err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return 0, err
	}

	reply, err := receive(ctx, c, ascii.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return 0, err
	}
	switch reply.Kind {
	case ascii.ReplyNumber:
		return reply.Number, nil
	case ascii.ReplyNotFound:
		return 0, protocol.ErrNotFound
	default:
		return 0, c.unexpectedReply(reply.Kind)
	}
}

// IncrementNoReply issues an increment without reading an acknowledgement.
func (c *Client) IncrementNoReply(ctx context.Context, key string, delta uint64) error {
	return c.arithmeticNoReply(ctx, ascii.OpIncr, key, delta)
}

// DecrementNoReply issues a decrement without reading an acknowledgement.
func (c *Client) DecrementNoReply(ctx context.Context, key string, delta uint64) error {
	return c.arithmeticNoReply(ctx, ascii.OpDecr, key, delta)
}

func (c *Client) arithmeticNoReply(ctx context.Context, op ascii.Op, key string, delta uint64) error {
	cmd := ascii.Command{Op: op, Keys: []string{key}, Delta: delta, NoReply: true}
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	return c.send(ctx, payload)
}

// --- TTL and administrative commands ---

// Touch updates a key's TTL without fetching it; ErrNotFound when absent.
func (c *Client) Touch(ctx context.Context, key string, ttl int64) error {
	cmd := ascii.Command{Op: ascii.OpTouch, Keys: []string{key}, TTL: ttl}
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return err
	}

	reply, err := receive(ctx, c, ascii.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return err
	}
	switch reply.Kind {
	case ascii.ReplyTouched:
		return nil
	case ascii.ReplyNotFound:
		return protocol.ErrNotFound
	default:
		return c.unexpectedReply(reply.Kind)
	}
}

// FlushAll invalidates every item, after delay seconds when delay > 0.
func (c *Client) FlushAll(ctx context.Context, delay int64) error {
	cmd := ascii.Command{Op: ascii.OpFlushAll, Delay: delay}
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return err
	}

	reply, err := receive(ctx, c, ascii.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return err
	}
	if reply.Kind != ascii.ReplyOK {
		return c.unexpectedReply(reply.Kind)
	}
	return nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	cmd := ascii.Command{Op: ascii.OpVersion}
	payload, err := cmd.Encode()
	if err != nil {
		return "", err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return "", err
	}

	reply, err := receive(ctx, c, ascii.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return "", err
	}
	if reply.Kind != ascii.ReplyVersion {
		return "", c.unexpectedReply(reply.Kind)
	}
	return reply.Text, nil
}

// Stats returns server statistics. An optional argument selects a substat
// domain (items, slabs, sizes, settings).
func (c *Client) Stats(ctx context.Context, arg ...string) (map[string]string, error) {
	cmd := ascii.Command{Op: ascii.OpStats}
	if len(arg) > 0 {
		cmd.Arg = arg[0]
	}
	payload, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}

	stats := make(map[string]string)
	for {
		reply, err := receive(ctx, c, ascii.ParseStats)
		if err != nil {
			c.metrics.errors.Inc()
			return nil, err
		}
		switch reply.Kind {
		case ascii.ReplyStat:
			stats[reply.Stat.Name] = reply.Stat.Value
		case ascii.ReplyEnd:
			return stats, nil
		default:
			return nil, c.unexpectedReply(reply.Kind)
		}
	}
}

// DumpKeys walks the server's key metadata via lru_crawler metadump,
// yielding one entry per cached key. classes is a comma-separated slab
// class list; empty dumps everything. ErrBusy is yielded when another crawl
// is already running, ErrBadClass for an invalid class list.
func (c *Client) DumpKeys(ctx context.Context, classes string) iter.Seq2[*KeyMetadata, error] {
	return func(yield func(*KeyMetadata, error) bool) {
		cmd := ascii.Command{Op: ascii.OpMetadump, Arg: classes}
		payload, err := cmd.Encode()
		if err != nil {
			yield(nil, err)
			return
		}
		if err := c.send(ctx, payload); err != nil {
			c.metrics.errors.Inc()
			yield(nil, err)
			return
		}

		for {
			reply, err := receive(ctx, c, ascii.ParseMetadump)
			if err != nil {
				yield(nil, err)
				return
			}
			switch reply.Kind {
			case ascii.ReplyMetaEntry:
				if !yield(reply.Meta, nil) {
					c.fail(context.Canceled)
					return
				}
			case ascii.ReplyEnd:
				return
			default:
				yield(nil, c.unexpectedReply(reply.Kind))
				return
			}
		}
	}
}

// --- Meta dialect ---

// MetaGet issues an mg command. When the request carries the quiet flag, a
// no-op command is piggybacked so a suppressed miss still unblocks the read;
// a nil response then means the server stayed silent.
func (c *Client) MetaGet(ctx context.Context, key string, flags ...meta.Flag) (*meta.Response, error) {
	return c.metaExchange(ctx, meta.NewRequest(meta.CmdGet, key, nil, flags...))
}

// MetaSet issues an ms command. The storage mode defaults to set; pass a
// FlagMode flag for add/replace/append/prepend semantics.
func (c *Client) MetaSet(ctx context.Context, key string, value []byte, flags ...meta.Flag) (*meta.Response, error) {
	return c.metaExchange(ctx, meta.NewRequest(meta.CmdSet, key, value, flags...))
}

// MetaDelete issues an md command.
func (c *Client) MetaDelete(ctx context.Context, key string, flags ...meta.Flag) (*meta.Response, error) {
	return c.metaExchange(ctx, meta.NewRequest(meta.CmdDelete, key, nil, flags...))
}

// MetaArithmetic issues an ma command.
func (c *Client) MetaArithmetic(ctx context.Context, key string, flags ...meta.Flag) (*meta.Response, error) {
	return c.metaExchange(ctx, meta.NewRequest(meta.CmdArithmetic, key, nil, flags...))
}

// MetaDebug issues an me command and returns the server's internal metadata
// for the key as parsed key=value pairs, or nil on a miss.
func (c *Client) MetaDebug(ctx context.Context, key string, flags ...meta.Flag) (map[string]string, error) {
	resp, err := c.metaExchange(ctx, meta.NewRequest(meta.CmdDebug, key, nil, flags...))
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Status == meta.StatusEN {
		return nil, nil
	}
	if resp.Status != meta.StatusME {
		return nil, c.unexpectedMetaStatus(resp.Status)
	}
	return meta.ParseDebugParams(resp.Data), nil
}

// MetaNoOp issues an mn command and waits for its MN marker.
func (c *Client) MetaNoOp(ctx context.Context) error {
	resp, err := c.metaExchange(ctx, meta.NewRequest(meta.CmdNoOp, "", nil))
	if err != nil {
		return err
	}
	if resp.Status != meta.StatusMN {
		return c.unexpectedMetaStatus(resp.Status)
	}
	return nil
}

func (c *Client) metaExchange(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	quiet := req.HasFlag(meta.FlagQuiet)

	payload, err := req.Encode()
	if err != nil {
		return nil, err
	}
	if quiet {
		noop := meta.NewRequest(meta.CmdNoOp, "", nil)
		if payload, err = noop.Append(payload); err != nil {
			return nil, err
		}
	}
	if err := c.send(ctx, payload); err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}

	resp, err := receive(ctx, c, meta.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}
	if !quiet {
		return resp, nil
	}

	// Quiet mode: the MN marker arrives either right away (response was
	// suppressed) or after the real response.
	if resp.Status == meta.StatusMN {
		return nil, nil
	}
	marker, err := receive(ctx, c, meta.Parse)
	if err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}
	if marker.Status != meta.StatusMN {
		return nil, c.unexpectedMetaStatus(marker.Status)
	}
	return resp, nil
}

func (c *Client) unexpectedMetaStatus(status meta.StatusType) error {
	err := &protocol.ParseError{Message: "unexpected response code: " + string(status)}
	c.fail(err)
	return err
}
