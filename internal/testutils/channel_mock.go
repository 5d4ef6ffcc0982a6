// Package testutils provides test doubles shared by the engine tests.
package testutils

import (
	"io"
	"time"
)

// ChannelMock is a scripted byte channel. Each element of Chunks is served
// by exactly one Read call, which lets tests exercise the parser's resume
// behavior at arbitrary byte boundaries. Once the script is exhausted, Read
// returns io.EOF.
type ChannelMock struct {
	// Chunks is the remaining scripted read data.
	Chunks [][]byte

	// Written accumulates everything the engine wrote.
	Written []byte

	// WriteErr, when set, is returned by the next Write call.
	WriteErr error

	// ReadErr, when set, is returned once the chunks are exhausted instead
	// of io.EOF.
	ReadErr error

	// ErrWithLastChunk makes the Read that finishes the final chunk return
	// its data together with ReadErr (or io.EOF), the way the io.Reader
	// contract allows.
	ErrWithLastChunk bool

	// ShortWrite truncates writes to one byte.
	ShortWrite bool

	// Deadlines records every SetDeadline call.
	Deadlines []time.Time

	reads  int
	writes int
}

// NewChannelMock scripts a channel from response fragments.
func NewChannelMock(chunks ...[]byte) *ChannelMock {
	return &ChannelMock{Chunks: chunks}
}

// NewChannelMockString scripts a channel from string fragments.
func NewChannelMockString(chunks ...string) *ChannelMock {
	m := &ChannelMock{}
	for _, chunk := range chunks {
		m.Chunks = append(m.Chunks, []byte(chunk))
	}
	return m
}

func (m *ChannelMock) Read(p []byte) (int, error) {
	m.reads++
	if len(m.Chunks) == 0 {
		if m.ReadErr != nil {
			return 0, m.ReadErr
		}
		return 0, io.EOF
	}
	chunk := m.Chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		m.Chunks[0] = chunk[n:]
	} else {
		m.Chunks = m.Chunks[1:]
	}
	if m.ErrWithLastChunk && len(m.Chunks) == 0 {
		if m.ReadErr != nil {
			return n, m.ReadErr
		}
		return n, io.EOF
	}
	return n, nil
}

func (m *ChannelMock) Write(p []byte) (int, error) {
	m.writes++
	if m.WriteErr != nil {
		err := m.WriteErr
		m.WriteErr = nil
		return 0, err
	}
	if m.ShortWrite {
		m.Written = append(m.Written, p[0])
		return 1, nil
	}
	m.Written = append(m.Written, p...)
	return len(p), nil
}

func (m *ChannelMock) SetDeadline(t time.Time) error {
	m.Deadlines = append(m.Deadlines, t)
	return nil
}

// Reads reports how many Read calls were made.
func (m *ChannelMock) Reads() int { return m.reads }

// Writes reports how many Write calls were made.
func (m *ChannelMock) Writes() int { return m.writes }
