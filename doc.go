// Package memcache implements the memcached client wire protocol: the
// classic ASCII dialect and the compact meta dialect, a command encoder, an
// incremental response parser and the engine that drives them over a byte
// channel.
//
// The engine owns a single connection and is deliberately small: no pooling,
// no retries, no failover. A Client wraps any Channel (net.Conn works
// directly, Dial builds TCP/unix/UDP ones) and exposes the protocol
// operations:
//
//	ch, err := memcache.Dial("localhost:11211", time.Second)
//	if err != nil { ... }
//	client := memcache.New(ch)
//	item, err := client.Get(ctx, "greeting")
//
// Errors are total: every failure is either a protocol sentinel
// (protocol.ErrNotFound, protocol.ErrNotStored, ...), a typed error from the
// protocol package, or ErrConnectionBroken. After a channel or parse
// failure the engine refuses further use; protocol.ShouldDiscardConnection
// tells connection-managing callers which errors poison a connection.
//
// Ring shards keys across several engines with consistent hashing for
// multi-server deployments.
package memcache
