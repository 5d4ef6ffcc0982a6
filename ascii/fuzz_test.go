package ascii

import (
	"testing"
)

// FuzzParse checks the parser's structural guarantees on arbitrary input:
// no panics, no negative or out-of-range consumption, and idempotence for
// an unmodified buffer.
func FuzzParse(f *testing.F) {
	f.Add([]byte("STORED\r\n"))
	f.Add([]byte("VALUE key 0 5\r\nhello\r\nEND\r\n"))
	f.Add([]byte("VALUE key 123 3 456\r\nabc\r\n"))
	f.Add([]byte("END\r\n"))
	f.Add([]byte("CLIENT_ERROR bad data chunk\r\n"))
	f.Add([]byte("VERSION 1.6.23\r\n"))
	f.Add([]byte("42\r\n"))
	f.Add([]byte("VALUE k 0 99999999999\r\n"))
	f.Add([]byte("\r\n"))
	f.Add([]byte("VALUE k 0 3\r\nab"))

	f.Fuzz(func(t *testing.T, data []byte) {
		reply, n, err := Parse(data)
		if n < 0 || n > len(data) {
			t.Fatalf("consumed %d of %d bytes", n, len(data))
		}
		if reply != nil && err != nil {
			t.Fatal("returned both a reply and an error")
		}
		if reply != nil && n == 0 {
			t.Fatal("returned a reply without consuming bytes")
		}

		reply2, n2, err2 := Parse(data)
		if n != n2 || (reply == nil) != (reply2 == nil) || (err == nil) != (err2 == nil) {
			t.Fatal("parse is not idempotent on an unmodified buffer")
		}
	})
}

func FuzzParseMetadump(f *testing.F) {
	f.Add([]byte("key=foo exp=-1 la=1700000000 cas=12345 fetch=yes cls=5 size=66\r\n"))
	f.Add([]byte("END\r\n"))
	f.Add([]byte("BUSY crawling\r\n"))
	f.Add([]byte("key=a%20b exp=0\r\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		reply, n, err := ParseMetadump(data)
		if n < 0 || n > len(data) {
			t.Fatalf("consumed %d of %d bytes", n, len(data))
		}
		if reply != nil && err != nil {
			t.Fatal("returned both a reply and an error")
		}
	})
}
