package memcache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexwren/memcache/internal/testutils"
	"github.com/hexwren/memcache/meta"
	"github.com/hexwren/memcache/protocol"
)

func TestGet(t *testing.T) {
	t.Run("hit", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VALUE k 42 3\r\nabc\r\nEND\r\n")
		client := New(mock)

		item, err := client.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, item.Found)
		assert.Equal(t, "k", item.Key)
		assert.Equal(t, []byte("abc"), item.Value)
		assert.Equal(t, uint32(42), item.Flags)
		assert.False(t, item.HasCAS)
		assert.Equal(t, "get k\r\n", string(mock.Written))
	})

	t.Run("miss", func(t *testing.T) {
		mock := testutils.NewChannelMockString("END\r\n")
		client := New(mock)

		item, err := client.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, item.Found)
		assert.Equal(t, "missing", item.Key)
	})

	t.Run("response split across reads", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VALUE k 0 3\r", "\nab", "c\r\nEN", "D\r\n")
		client := New(mock)

		item, err := client.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, item.Found)
		assert.Equal(t, []byte("abc"), item.Value)
		assert.Equal(t, 4, mock.Reads())
	})

	t.Run("invalid key fails before any io", func(t *testing.T) {
		mock := testutils.NewChannelMockString()
		client := New(mock)

		_, err := client.Get(context.Background(), "bad key")
		var invalidErr *protocol.InvalidArgumentError
		require.ErrorAs(t, err, &invalidErr)
		assert.Zero(t, mock.Writes())
		assert.False(t, client.Broken())
	})
}

func TestGets(t *testing.T) {
	mock := testutils.NewChannelMockString("VALUE k 0 3 77\r\nabc\r\nEND\r\n")
	client := New(mock)

	item, err := client.Gets(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, item.HasCAS)
	assert.Equal(t, uint64(77), item.CAS)
	assert.Equal(t, "gets k\r\n", string(mock.Written))
}

func TestGetMulti(t *testing.T) {
	t.Run("misses are absent", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VALUE b 0 1\r\n2\r\nEND\r\n")
		client := New(mock)

		items, err := client.GetMulti(context.Background(), "a", "b", "c")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "b", items[0].Key)
		assert.Equal(t, "get a b c\r\n", string(mock.Written))
	})

	t.Run("server order preserved", func(t *testing.T) {
		mock := testutils.NewChannelMockString(
			"VALUE a 0 1\r\n1\r\nVALUE c 0 1\r\n3\r\nEND\r\n")
		client := New(mock)

		items, err := client.GetMulti(context.Background(), "a", "b", "c")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "a", items[0].Key)
		assert.Equal(t, "c", items[1].Key)
	})
}

func TestScanAbandonedBreaksConnection(t *testing.T) {
	mock := testutils.NewChannelMockString(
		"VALUE a 0 1\r\n1\r\nVALUE b 0 1\r\n2\r\nEND\r\n")
	client := New(mock)

	for item, err := range client.Scan(context.Background(), "a", "b") {
		require.NoError(t, err)
		assert.Equal(t, "a", item.Key)
		break
	}

	assert.True(t, client.Broken())
	_, err := client.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrConnectionBroken)
}

func TestStore(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		mock := testutils.NewChannelMockString("STORED\r\n")
		client := New(mock)

		err := client.Set(context.Background(), Item{Key: "x", Value: []byte("v"), TTL: 60})
		require.NoError(t, err)
		assert.Equal(t, "set x 0 60 1\r\nv\r\n", string(mock.Written))
	})

	t.Run("add refused", func(t *testing.T) {
		mock := testutils.NewChannelMockString("NOT_STORED\r\n", "STORED\r\n")
		client := New(mock)

		err := client.Add(context.Background(), Item{Key: "x", Value: []byte("v")})
		assert.ErrorIs(t, err, protocol.ErrNotStored)

		// a refused conditional store leaves the connection usable
		assert.False(t, client.Broken())
		require.NoError(t, client.Set(context.Background(), Item{Key: "x", Value: []byte("v")}))
	})

	t.Run("cas conflict", func(t *testing.T) {
		mock := testutils.NewChannelMockString("EXISTS\r\n")
		client := New(mock)

		err := client.Replace(context.Background(), Item{Key: "x", Value: []byte("v")})
		assert.ErrorIs(t, err, protocol.ErrExists)
		assert.False(t, client.Broken())
	})

	t.Run("append missing key", func(t *testing.T) {
		mock := testutils.NewChannelMockString("NOT_STORED\r\n")
		client := New(mock)

		err := client.AppendValue(context.Background(), Item{Key: "x", Value: []byte("!")})
		assert.ErrorIs(t, err, protocol.ErrNotStored)
		assert.Equal(t, "append x 0 0 1\r\n!\r\n", string(mock.Written))
	})
}

func TestStoreMulti(t *testing.T) {
	mock := testutils.NewChannelMockString("STORED\r\nNOT_STORED\r\nSTORED\r\n")
	client := New(mock)

	failed, err := client.AddMulti(context.Background(), []Item{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
		{Key: "c", Value: []byte("3")},
	})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed["b"], protocol.ErrNotStored)
	assert.Equal(t, 1, mock.Writes(), "the batch must go out as one write")
	assert.False(t, client.Broken())
}

func TestDelete(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := testutils.NewChannelMockString("DELETED\r\n")
		client := New(mock)

		require.NoError(t, client.Delete(context.Background(), "x"))
		assert.Equal(t, "delete x\r\n", string(mock.Written))
	})

	t.Run("not found", func(t *testing.T) {
		mock := testutils.NewChannelMockString("NOT_FOUND\r\n")
		client := New(mock)

		err := client.Delete(context.Background(), "x")
		assert.ErrorIs(t, err, protocol.ErrNotFound)
	})
}

func TestNoReplyNeverReads(t *testing.T) {
	mock := testutils.NewChannelMockString()
	client := New(mock)

	require.NoError(t, client.DeleteMultiNoReply(context.Background(), "a", "b"))
	require.NoError(t, client.IncrementNoReply(context.Background(), "counter", 1))

	assert.Zero(t, mock.Reads())
	assert.Equal(t,
		"delete a noreply\r\ndelete b noreply\r\nincr counter 1 noreply\r\n",
		string(mock.Written))
	assert.False(t, client.Broken())
}

func TestArithmetic(t *testing.T) {
	t.Run("increment", func(t *testing.T) {
		mock := testutils.NewChannelMockString("6\r\n")
		client := New(mock)

		n, err := client.Increment(context.Background(), "counter", 5)
		require.NoError(t, err)
		assert.Equal(t, uint64(6), n)
		assert.Equal(t, "incr counter 5\r\n", string(mock.Written))
	})

	t.Run("decrement missing key", func(t *testing.T) {
		mock := testutils.NewChannelMockString("NOT_FOUND\r\n")
		client := New(mock)

		_, err := client.Decrement(context.Background(), "counter", 1)
		assert.ErrorIs(t, err, protocol.ErrNotFound)
	})
}

func TestTouch(t *testing.T) {
	mock := testutils.NewChannelMockString("TOUCHED\r\n")
	client := New(mock)

	require.NoError(t, client.Touch(context.Background(), "x", 300))
	assert.Equal(t, "touch x 300\r\n", string(mock.Written))
}

func TestGetAndTouch(t *testing.T) {
	mock := testutils.NewChannelMockString("VALUE k 0 1\r\nv\r\nEND\r\n")
	client := New(mock)

	item, err := client.GetAndTouch(context.Background(), "k", 60)
	require.NoError(t, err)
	assert.True(t, item.Found)
	assert.Equal(t, "gat 60 k\r\n", string(mock.Written))
}

func TestFlushAll(t *testing.T) {
	mock := testutils.NewChannelMockString("OK\r\n")
	client := New(mock)

	require.NoError(t, client.FlushAll(context.Background(), 10))
	assert.Equal(t, "flush_all 10\r\n", string(mock.Written))
}

func TestVersion(t *testing.T) {
	mock := testutils.NewChannelMockString("VERSION 1.6.23\r\n")
	client := New(mock)

	version, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.6.23", version)
}

func TestStats(t *testing.T) {
	mock := testutils.NewChannelMockString(
		"STAT pid 12345\r\nSTAT version 1.6.23\r\nEND\r\n")
	client := New(mock)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pid": "12345", "version": "1.6.23"}, stats)
}

func TestDumpKeys(t *testing.T) {
	t.Run("entries", func(t *testing.T) {
		mock := testutils.NewChannelMockString(
			"key=user%3A1 exp=-1 la=100 cas=1 fetch=yes cls=1 size=64\r\n" +
				"key=user%3A2 exp=0 la=200 cas=2 fetch=no cls=1 size=64\r\n" +
				"END\r\n")
		client := New(mock)

		var keys []string
		for entry, err := range client.DumpKeys(context.Background(), "") {
			require.NoError(t, err)
			keys = append(keys, entry.Key)
		}
		assert.Equal(t, []string{"user:1", "user:2"}, keys)
		assert.Equal(t, "lru_crawler metadump all\r\n", string(mock.Written))
		assert.False(t, client.Broken())
	})

	t.Run("busy leaves connection usable", func(t *testing.T) {
		mock := testutils.NewChannelMockString("BUSY crawler is running\r\n", "VERSION 1\r\n")
		client := New(mock)

		var got error
		for _, err := range client.DumpKeys(context.Background(), "") {
			got = err
			break
		}
		assert.ErrorIs(t, got, protocol.ErrBusy)
		assert.False(t, client.Broken())

		_, err := client.Version(context.Background())
		require.NoError(t, err)
	})
}

func TestPipelinedBytesStayBuffered(t *testing.T) {
	// Both acknowledgements arrive in one read; the second operation must be
	// served from the accumulation buffer without touching the channel.
	mock := testutils.NewChannelMockString("STORED\r\nDELETED\r\n")
	client := New(mock)

	require.NoError(t, client.Set(context.Background(), Item{Key: "x", Value: []byte("v")}))
	require.NoError(t, client.Delete(context.Background(), "x"))
	assert.Equal(t, 1, mock.Reads())
}

func TestChannelFailures(t *testing.T) {
	t.Run("eof mid response", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VALUE k 0 3\r\nab")
		client := New(mock)

		_, err := client.Get(context.Background(), "k")
		var chanErr *protocol.ChannelError
		require.ErrorAs(t, err, &chanErr)
		assert.ErrorIs(t, err, protocol.ErrChannelClosed)
		assert.True(t, client.Broken())
	})

	t.Run("data arriving with eof completes the response", func(t *testing.T) {
		// io.Reader allows a Read to return data and an error together;
		// the bytes must be parsed before the closure surfaces.
		mock := testutils.NewChannelMockString("VALUE k 0 3\r\nabc\r\nEND\r\n")
		mock.ErrWithLastChunk = true
		client := New(mock)

		item, err := client.Get(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, item.Found)
		assert.Equal(t, []byte("abc"), item.Value)

		// the held-back closure surfaces on the next read
		_, err = client.Get(context.Background(), "k")
		var chanErr *protocol.ChannelError
		require.ErrorAs(t, err, &chanErr)
		assert.ErrorIs(t, err, protocol.ErrChannelClosed)
		assert.True(t, client.Broken())
	})

	t.Run("data arriving with read error completes the response", func(t *testing.T) {
		mock := testutils.NewChannelMockString("STORED\r\n")
		mock.ErrWithLastChunk = true
		mock.ReadErr = io.ErrUnexpectedEOF
		client := New(mock)

		require.NoError(t, client.Set(context.Background(), Item{Key: "x", Value: []byte("v")}))
		assert.False(t, client.Broken())
	})

	t.Run("read error", func(t *testing.T) {
		mock := testutils.NewChannelMockString()
		mock.ReadErr = io.ErrUnexpectedEOF
		client := New(mock)

		_, err := client.Get(context.Background(), "k")
		var chanErr *protocol.ChannelError
		require.ErrorAs(t, err, &chanErr)
		assert.True(t, client.Broken())
	})

	t.Run("write error", func(t *testing.T) {
		mock := testutils.NewChannelMockString()
		mock.WriteErr = io.ErrClosedPipe
		client := New(mock)

		err := client.Set(context.Background(), Item{Key: "x", Value: []byte("v")})
		var chanErr *protocol.ChannelError
		require.ErrorAs(t, err, &chanErr)
		assert.Equal(t, "write", chanErr.Op)
		assert.True(t, client.Broken())
	})

	t.Run("short write", func(t *testing.T) {
		mock := testutils.NewChannelMockString()
		mock.ShortWrite = true
		client := New(mock)

		err := client.Set(context.Background(), Item{Key: "x", Value: []byte("v")})
		require.Error(t, err)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		assert.True(t, client.Broken())
	})

	t.Run("broken connection fails fast", func(t *testing.T) {
		mock := testutils.NewChannelMockString("garbage that parses to nothing\r\n")
		client := New(mock)

		_, err := client.Get(context.Background(), "k")
		var parseErr *protocol.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.True(t, client.Broken())

		err = client.Set(context.Background(), Item{Key: "x", Value: []byte("v")})
		assert.ErrorIs(t, err, ErrConnectionBroken)
		assert.Equal(t, 1, mock.Writes())
	})
}

func TestServerErrorKeepsConnection(t *testing.T) {
	mock := testutils.NewChannelMockString("SERVER_ERROR out of memory\r\n", "STORED\r\n")
	client := New(mock)

	err := client.Set(context.Background(), Item{Key: "x", Value: []byte("v")})
	var serverErr *protocol.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.False(t, client.Broken())

	require.NoError(t, client.Set(context.Background(), Item{Key: "x", Value: []byte("v")}))
}

func TestClientErrorBreaksConnection(t *testing.T) {
	mock := testutils.NewChannelMockString("CLIENT_ERROR bad data chunk\r\n")
	client := New(mock)

	err := client.Set(context.Background(), Item{Key: "x", Value: []byte("v")})
	var clientErr *protocol.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.True(t, client.Broken())
}

func TestContextDeadlinePropagation(t *testing.T) {
	mock := testutils.NewChannelMockString("STORED\r\n")
	client := New(mock)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(time.Minute))
	defer cancel()

	require.NoError(t, client.Set(ctx, Item{Key: "x", Value: []byte("v")}))
	require.NotEmpty(t, mock.Deadlines)
	assert.False(t, mock.Deadlines[0].IsZero())
}

func TestContextCancelledBeforeSend(t *testing.T) {
	mock := testutils.NewChannelMockString()
	client := New(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mock.Writes())
}

func TestMetaOperations(t *testing.T) {
	t.Run("get with value", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VA 3 c17\r\nabc\r\n")
		client := New(mock)

		resp, err := client.MetaGet(context.Background(), "k",
			meta.Flag{Type: meta.FlagReturnValue},
			meta.Flag{Type: meta.FlagReturnCAS},
		)
		require.NoError(t, err)
		assert.Equal(t, meta.StatusVA, resp.Status)
		assert.Equal(t, []byte("abc"), resp.Data)
		assert.Equal(t, "mg k v c\r\n", string(mock.Written))
	})

	t.Run("quiet get miss returns nil", func(t *testing.T) {
		mock := testutils.NewChannelMockString("MN\r\n")
		client := New(mock)

		resp, err := client.MetaGet(context.Background(), "k",
			meta.Flag{Type: meta.FlagReturnValue},
			meta.Flag{Type: meta.FlagQuiet},
		)
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, "mg k v q\r\nmn\r\n", string(mock.Written))
	})

	t.Run("quiet get hit consumes the marker", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VA 1 q\r\nv\r\nMN\r\n", "HD\r\n")
		client := New(mock)

		resp, err := client.MetaGet(context.Background(), "k",
			meta.Flag{Type: meta.FlagReturnValue},
			meta.Flag{Type: meta.FlagQuiet},
		)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, []byte("v"), resp.Data)

		// the MN marker is gone from the stream
		stored, err := client.MetaSet(context.Background(), "k", []byte("v"))
		require.NoError(t, err)
		assert.Equal(t, meta.StatusHD, stored.Status)
	})

	t.Run("set", func(t *testing.T) {
		mock := testutils.NewChannelMockString("HD\r\n")
		client := New(mock)

		resp, err := client.MetaSet(context.Background(), "k", []byte("hello"),
			meta.Flag{Type: meta.FlagTTL, Token: "60"})
		require.NoError(t, err)
		assert.True(t, resp.IsSuccess())
		assert.Equal(t, "ms k 5 T60\r\nhello\r\n", string(mock.Written))
	})

	t.Run("delete miss", func(t *testing.T) {
		mock := testutils.NewChannelMockString("NF\r\n")
		client := New(mock)

		resp, err := client.MetaDelete(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, resp.IsMiss())
	})

	t.Run("arithmetic", func(t *testing.T) {
		mock := testutils.NewChannelMockString("VA 1\r\n6\r\n")
		client := New(mock)

		resp, err := client.MetaArithmetic(context.Background(), "counter",
			meta.Flag{Type: meta.FlagDelta, Token: "5"},
			meta.Flag{Type: meta.FlagReturnValue},
		)
		require.NoError(t, err)
		assert.Equal(t, []byte("6"), resp.Data)
	})

	t.Run("debug", func(t *testing.T) {
		mock := testutils.NewChannelMockString("ME k exp=-1 cas=17\r\n")
		client := New(mock)

		params, err := client.MetaDebug(context.Background(), "k")
		require.NoError(t, err)
		assert.Equal(t, "17", params["cas"])
	})

	t.Run("noop", func(t *testing.T) {
		mock := testutils.NewChannelMockString("MN\r\n")
		client := New(mock)

		require.NoError(t, client.MetaNoOp(context.Background()))
		assert.Equal(t, "mn\r\n", string(mock.Written))
	})
}

func TestMetrics(t *testing.T) {
	mock := testutils.NewChannelMockString(
		"VALUE k 0 1\r\nv\r\nEND\r\n", "END\r\n", "STORED\r\n", "DELETED\r\n")
	client := New(mock)
	ctx := context.Background()

	_, _ = client.Get(ctx, "k")
	_, _ = client.Get(ctx, "missing")
	_ = client.Set(ctx, Item{Key: "k", Value: []byte("v")})
	_ = client.Delete(ctx, "k")

	snap := client.Metrics()
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, int64(1), snap.Stores)
	assert.Equal(t, int64(1), snap.Deletes)
	assert.Zero(t, snap.Errors)
	assert.Positive(t, snap.BytesRead)
	assert.Positive(t, snap.BytesWritten)
}
