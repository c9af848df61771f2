package lspserver

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"go.lsp.dev/jsonrpc2"
)

// buffer is one direction of an in-memory wire. Reads block until data
// arrives or the buffer is closed.
type buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	closed bool
}

func newBuffer() *buffer {
	b := &buffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	b.data = append(b.data, p...)
	b.cond.Signal()
	return len(p), nil
}

func (b *buffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// wireEnd is one side of a wire. Closing either side ends both directions,
// so the peer's read loop sees EOF the way it would on a closed stdio pipe.
type wireEnd struct {
	in, out *buffer
	closed  *atomic.Bool
}

func (e *wireEnd) Read(p []byte) (int, error)  { return e.in.Read(p) }
func (e *wireEnd) Write(p []byte) (int, error) { return e.out.Write(p) }

func (e *wireEnd) Close() error {
	e.closed.Store(true)
	e.in.close()
	e.out.close()
	return nil
}

// newWire returns the client and server ends of an in-memory connection.
func newWire() (client, server *wireEnd) {
	c2s, s2c := newBuffer(), newBuffer()
	client = &wireEnd{in: s2c, out: c2s, closed: new(atomic.Bool)}
	server = &wireEnd{in: c2s, out: s2c, closed: new(atomic.Bool)}
	return client, server
}

// testPipe returns connected client and server jsonrpc2 connections.
func testPipe(t *testing.T) (clientConn, serverConn jsonrpc2.Conn) {
	t.Helper()
	client, server := newWire()
	clientConn = jsonrpc2.NewConn(jsonrpc2.NewStream(client))
	serverConn = jsonrpc2.NewConn(jsonrpc2.NewStream(server))
	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	})
	return clientConn, serverConn
}

// runServer serves s on a fresh wire through Run and returns the client
// connection, the server end of the wire and the channel receiving Run's
// result.
func runServer(t *testing.T, s *Server) (jsonrpc2.Conn, *wireEnd, <-chan error) {
	t.Helper()
	client, server := newWire()
	clientConn := jsonrpc2.NewConn(jsonrpc2.NewStream(client))
	clientConn.Go(t.Context(), jsonrpc2.MethodNotFoundHandler)
	t.Cleanup(func() { _ = clientConn.Close() })

	errc := make(chan error, 1)
	go func() { errc <- s.Run(t.Context(), server) }()
	return clientConn, server, errc
}
