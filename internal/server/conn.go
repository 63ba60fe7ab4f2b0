package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rsoares/xadrez/internal/protocol"
)

// Conn wraps a TCP connection with newline-delimited JSON framing.
// Reads are line-based; writes serialize whole messages and are safe
// for concurrent use.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	// pending holds the partial line consumed before a read deadline
	// expired. Only the read loop goroutine touches it.
	pending []byte

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection with JSON line framing.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadLine reads a single message line, blocking up to the read timeout.
// The returned bytes include everything up to but not including the
// trailing newline. A line written slowly across several deadline windows
// is accumulated, not truncated: the partial bytes survive the timeout and
// are completed on the next call.
//
// Postcondition: Returns the next line, or an error (including io.EOF
// and timeout errors, which the caller distinguishes via net.Error).
func (c *Conn) ReadLine() ([]byte, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	chunk, err := c.reader.ReadBytes('\n')
	if err != nil {
		c.pending = append(c.pending, chunk...)
		return nil, err
	}

	line := chunk
	if len(c.pending) > 0 {
		line = append(c.pending, chunk...)
		c.pending = nil
	}
	// Strip the delimiter and an optional \r before it
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

// WriteMessage serializes v as a single JSON line and writes it.
//
// Postcondition: The encoded message plus newline is written, or an
// error is returned and nothing further should be assumed delivered.
func (c *Conn) WriteMessage(v any) error {
	data, err := protocol.Encode(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err = c.raw.Write(append(data, '\n'))
	return err
}

// Close closes the underlying TCP connection.
//
// Postcondition: The connection is closed and no longer usable.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// isTimeout reports whether err is a network timeout rather than a
// fatal read error.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
