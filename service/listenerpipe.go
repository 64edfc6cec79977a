package service

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// ListenerPipe returns a full-duplex in-memory connection, like net.Pipe,
// with one end wrapped in a net.Listener. The listener accepts exactly one
// connection, the other end of the pipe. It is used to serve a single
// client over stdio and in tests.
func ListenerPipe() (net.Listener, net.Conn) {
	conn0, conn1 := net.Pipe()
	return &preconnectedListener{conn: conn0, closech: make(chan struct{})}, conn1
}

type preconnectedListener struct {
	accepted bool
	closed   bool
	conn     net.Conn
	closech  chan struct{}
	closeMu  sync.Mutex
	acceptMu sync.Mutex
}

// Accept returns conn once, later calls block until Close.
func (l *preconnectedListener) Accept() (net.Conn, error) {
	l.acceptMu.Lock()
	defer l.acceptMu.Unlock()
	if !l.accepted {
		l.accepted = true
		return l.conn, nil
	}
	<-l.closech
	return nil, errors.New("accept failed: listener closed")
}

func (l *preconnectedListener) Close() error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return nil
	}
	close(l.closech)
	l.closed = true
	return nil
}

func (l *preconnectedListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// StdioConn returns a net.Conn reading from r and writing to w, the DAP
// server uses it to talk to a client over the standard streams.
func StdioConn(r io.ReadCloser, w io.WriteCloser) net.Conn {
	return &stdioConn{r: r, w: w}
}

type stdioConn struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (c *stdioConn) Read(b []byte) (int, error)  { return c.r.Read(b) }
func (c *stdioConn) Write(b []byte) (int, error) { return c.w.Write(b) }

func (c *stdioConn) Close() error {
	err := c.r.Close()
	if err2 := c.w.Close(); err == nil {
		err = err2
	}
	return err
}

func (c *stdioConn) LocalAddr() net.Addr                { return stdioAddr{} }
func (c *stdioConn) RemoteAddr() net.Addr               { return stdioAddr{} }
func (c *stdioConn) SetDeadline(t time.Time) error      { return nil }
func (c *stdioConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *stdioConn) SetWriteDeadline(t time.Time) error { return nil }

type stdioAddr struct{}

func (stdioAddr) Network() string { return "stdio" }
func (stdioAddr) String() string  { return "stdio" }

// SingleConnListener returns a listener that accepts conn once.
func SingleConnListener(conn net.Conn) net.Listener {
	return &preconnectedListener{conn: conn, closech: make(chan struct{})}
}
