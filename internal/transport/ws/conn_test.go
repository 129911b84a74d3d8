package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestConn(t *testing.T, handler func(*websocket.Conn), binary bool) *conn {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	raw, br, _, err := ws.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return newConn(raw, br, binary)
}

func TestConn_Read(t *testing.T) {
	c := dialTestConn(t, func(peer *websocket.Conn) {
		_ = peer.WriteMessage(websocket.TextMessage, []byte("test message"))
		_, _, _ = peer.ReadMessage()
	}, false)

	data, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, "test message", string(data))
	assert.NotEmpty(t, c.RemoteAddr())
}

func TestConn_ReadAnswersPing(t *testing.T) {
	pong := make(chan string, 1)
	c := dialTestConn(t, func(peer *websocket.Conn) {
		peer.SetPongHandler(func(appData string) error {
			pong <- appData
			return nil
		})
		_ = peer.WriteControl(websocket.PingMessage, []byte("are you there"), time.Now().Add(time.Second))
		_ = peer.WriteMessage(websocket.TextMessage, []byte("after ping"))
		_, _, _ = peer.ReadMessage()
	}, false)

	data, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, "after ping", string(data))

	require.NoError(t, c.Write([]byte("wake reader")))
	select {
	case got := <-pong:
		assert.Equal(t, "are you there", got)
	case <-time.After(2 * time.Second):
		t.Fatal("pong never arrived")
	}
}

func TestConn_Write(t *testing.T) {
	tests := []struct {
		name     string
		binary   bool
		wantType int
	}{
		{name: "text", binary: false, wantType: websocket.TextMessage},
		{name: "binary", binary: true, wantType: websocket.BinaryMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type message struct {
				kind int
				data []byte
			}
			got := make(chan message, 1)
			c := dialTestConn(t, func(peer *websocket.Conn) {
				kind, data, err := peer.ReadMessage()
				if err != nil {
					return
				}
				got <- message{kind, data}
			}, tt.binary)

			require.NoError(t, c.Write([]byte("hello")))

			select {
			case m := <-got:
				assert.Equal(t, tt.wantType, m.kind)
				assert.Equal(t, "hello", string(m.data))
			case <-time.After(2 * time.Second):
				t.Fatal("server received nothing")
			}
		})
	}
}

func TestConn_CloseSendsNormalClosure(t *testing.T) {
	code := make(chan int, 1)
	c := dialTestConn(t, func(peer *websocket.Conn) {
		_, _, err := peer.ReadMessage()
		var ce *websocket.CloseError
		if assert.ErrorAs(t, err, &ce) {
			code <- ce.Code
		}
	}, false)

	assert.NoError(t, c.Close())

	select {
	case got := <-code:
		assert.Equal(t, websocket.CloseNormalClosure, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server saw no close frame")
	}
}
