package ws

import (
	"bufio"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/chatsocket/internal/syncio"
)

// conn adapts a client-side gobwas connection to whole-message reads and
// writes. Writes from the caller and control replies from the reader share
// one mutex so frames never interleave on the wire.
type conn struct {
	raw    net.Conn
	rw     io.ReadWriter
	binary bool

	writeMu sync.Mutex
}

func newConn(raw net.Conn, br *bufio.Reader, binary bool) *conn {
	c := &conn{raw: raw, binary: binary}
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

// Read reads the next data message. Pings are answered and close frames are
// reported as an error.
func (c *conn) Read() ([]byte, error) {
	data, _, err := wsutil.ReadServerData(c.rw)
	return data, err
}

// Write sends data as one text or binary message.
func (c *conn) Write(data []byte) error {
	op := ws.OpText
	if c.binary {
		op = ws.OpBinary
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientMessage(c.raw, op, data)
}

// Close sends a normal closure frame and closes the socket.
func (c *conn) Close() error {
	c.writeMu.Lock()
	_ = wsutil.WriteClientMessage(c.raw, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	c.writeMu.Unlock()
	return c.raw.Close()
}

// RemoteAddr returns the remote address for logging.
func (c *conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}
