// Package relay is a development chat server speaking the same named-event
// protocol as the chatsocket adapter. It keeps sessions, joins and message
// history in memory.
package relay

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/chatsocket/internal/syncio"
)

// Conn abstracts one accepted client connection.
// This interface isolates the socket from the hub logic.
type Conn interface {
	// Read reads a single message and reports whether it was binary.
	Read() (data []byte, binary bool, err error)

	// Write sends a single text or binary message.
	Write(data []byte, binary bool) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

const closeWriteTimeout = time.Second

// wsConn is a server-side gobwas connection.
type wsConn struct {
	raw net.Conn
	rw  io.ReadWriter

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSConn(raw net.Conn, br *bufio.Reader) *wsConn {
	c := &wsConn{raw: raw}
	var r io.Reader = raw
	if br != nil {
		r = br
	}
	c.rw = struct {
		io.Reader
		io.Writer
	}{r, syncio.Writer{Mu: &c.writeMu, W: raw}}
	return c
}

func (c *wsConn) Read() ([]byte, bool, error) {
	data, op, err := wsutil.ReadClientData(c.rw)
	if err != nil {
		return nil, false, err
	}
	return data, op == ws.OpBinary, nil
}

func (c *wsConn) Write(data []byte, binary bool) error {
	op := ws.OpText
	if binary {
		op = ws.OpBinary
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.raw, op, data)
}

// Close sends a normal closure frame and closes the socket. Safe to call more
// than once.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.raw.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
		c.writeMu.Lock()
		_ = wsutil.WriteServerMessage(c.raw, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.raw.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}
