package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rsoares/xadrez/internal/protocol"
)

// JSONClient is a test helper that speaks the newline-delimited JSON
// protocol against a running server.
type JSONClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// NewJSONClient connects to the given address and returns a client
// ready to exchange messages.
//
// Postcondition: Returns a connected client, or fails the test.
func NewJSONClient(t *testing.T, addr string) *JSONClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dialing %s: %v", addr, err)
	}

	c := &JSONClient{
		t:      t,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
	t.Cleanup(c.Close)
	return c
}

// Send encodes v as a single JSON line and writes it to the server.
func (c *JSONClient) Send(v any) {
	c.t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("encoding message: %v", err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		c.t.Fatalf("setting write deadline: %v", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		c.t.Fatalf("writing message: %v", err)
	}
}

// ReadEnvelope reads the next line from the server and decodes it.
func (c *JSONClient) ReadEnvelope(timeout time.Duration) (protocol.Envelope, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Envelope{}, fmt.Errorf("setting read deadline: %w", err)
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("reading line: %w", err)
	}
	return protocol.Decode(line)
}

// WaitFor reads envelopes until one with the given type arrives,
// skipping others. Fails the test if the deadline passes first.
func (c *JSONClient) WaitFor(msgType string, timeout time.Duration) protocol.Envelope {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		env, err := c.ReadEnvelope(time.Until(deadline))
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if env.Type == msgType {
			return env
		}
	}
	c.t.Fatalf("timed out waiting for %q", msgType)
	return protocol.Envelope{}
}

// Close shuts down the connection. Safe to call more than once.
func (c *JSONClient) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
