package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T, onServer func(*Client)) *websocket.Conn {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		onServer(NewClient(conn, time.Second, time.Second))
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestClient_Echo(t *testing.T) {
	conn := newPair(t, func(c *Client) {
		for msg := range c.R {
			if err := c.Write(msg); err != nil {
				return
			}
		}
	})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping-1")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping-2")))

	for _, want := range []string{"ping-1", "ping-2"} {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, want, string(msg))
	}
}

func TestClient_CloseWithCode(t *testing.T) {
	conn := newPair(t, func(c *Client) {
		c.Close(4003, "anonymous")
		require.ErrorIs(t, c.Write([]byte("late")), ErrClosed)
	})

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, 4003, closeErr.Code)
	require.Equal(t, "anonymous", closeErr.Text)
}

func TestClient_ReaderClosesOnPeerLeave(t *testing.T) {
	done := make(chan struct{})
	conn := newPair(t, func(c *Client) {
		for range c.R {
		}
		close(done)
	})

	conn.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("reader did not stop")
	}
}

func TestCompress(t *testing.T) {
	data := []byte(strings.Repeat("chat message ", 100))
	compressed, err := Compress(data)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(data))

	origin, err := Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, data, origin)
}
