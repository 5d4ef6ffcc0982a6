package memcache

import (
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultPort is appended to tcp addresses that carry no port.
const DefaultPort = "11211"

// Dial connects to a server address and returns a Channel ready to hand to
// New. Supported forms:
//
//	host:port            plain TCP
//	host                 TCP on the default port
//	tcp://host[:port]
//	unix:///path/to.sock
//	udp://host[:port]    datagram transport with memcached's frame header
func Dial(addr string, timeout time.Duration) (Channel, error) {
	scheme, rest, found := strings.Cut(addr, "://")
	if !found {
		scheme, rest = "tcp", addr
	}

	switch scheme {
	case "tcp":
		conn, err := net.DialTimeout("tcp", withDefaultPort(rest), timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "dialing tcp %s", rest)
		}
		return conn, nil

	case "unix":
		conn, err := net.DialTimeout("unix", rest, timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "dialing unix socket %s", rest)
		}
		return conn, nil

	case "udp":
		conn, err := net.DialTimeout("udp", withDefaultPort(rest), timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "dialing udp %s", rest)
		}
		return newUDPChannel(conn), nil

	default:
		return nil, errors.Errorf("unsupported address scheme %q", scheme)
	}
}

func withDefaultPort(hostport string) string {
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		return net.JoinHostPort(hostport, DefaultPort)
	}
	return hostport
}

// udpFrameSize is the fixed header every memcached UDP datagram carries:
// request id, sequence number, datagram count, reserved — two bytes each,
// big endian.
const udpFrameSize = 8

// maxDatagram is large enough for any response datagram a server sends
// (servers cap UDP payloads well below this).
const maxDatagram = 64 * 1024

// udpChannel adapts a datagram connection to the engine's stream-oriented
// Channel. Each Write becomes one framed datagram; Read strips frame
// headers and hands back payload bytes in sequence order. Datagrams of a
// multi-part response must arrive in order; reordering is reported as an
// error, not reconstructed.
type udpChannel struct {
	conn      net.Conn
	requestID uint16
	nextSeq   uint16
	pending   []byte
	datagram  []byte
}

func newUDPChannel(conn net.Conn) *udpChannel {
	return &udpChannel{conn: conn, datagram: make([]byte, maxDatagram)}
}

func (u *udpChannel) Write(p []byte) (int, error) {
	u.requestID++
	u.nextSeq = 0
	frame := make([]byte, udpFrameSize+len(p))
	frame[0] = byte(u.requestID >> 8)
	frame[1] = byte(u.requestID)
	// sequence 0 of 1: requests always fit one datagram
	frame[5] = 1
	copy(frame[udpFrameSize:], p)

	if _, err := u.conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (u *udpChannel) Read(p []byte) (int, error) {
	for len(u.pending) == 0 {
		n, err := u.conn.Read(u.datagram)
		if err != nil {
			return 0, err
		}
		if n < udpFrameSize {
			return 0, errors.Errorf("udp datagram shorter than frame header: %d bytes", n)
		}
		id := uint16(u.datagram[0])<<8 | uint16(u.datagram[1])
		if id != u.requestID {
			// stale response from an earlier, timed-out request
			continue
		}
		seq := uint16(u.datagram[2])<<8 | uint16(u.datagram[3])
		count := uint16(u.datagram[4])<<8 | uint16(u.datagram[5])
		if count == 0 || seq >= count {
			return 0, errors.Errorf("udp frame header out of range: datagram %d of %d", seq, count)
		}
		if seq != u.nextSeq {
			return 0, errors.Errorf("udp datagrams out of order: got %d, want %d", seq, u.nextSeq)
		}
		if n == udpFrameSize {
			return 0, errors.New("udp datagram with empty payload")
		}
		u.nextSeq++
		if u.nextSeq == count {
			// message complete; the next datagram starts a new sequence
			u.nextSeq = 0
		}
		u.pending = append(u.pending, u.datagram[udpFrameSize:n]...)
	}

	n := copy(p, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}

func (u *udpChannel) SetDeadline(t time.Time) error {
	return u.conn.SetDeadline(t)
}

// Close releases the underlying connection.
func (u *udpChannel) Close() error {
	return u.conn.Close()
}
