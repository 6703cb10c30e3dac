package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 64 << 10

var ErrClosed = errors.New("connection is closed")

type Client struct {
	Conn *websocket.Conn

	// R yields text frames read from the peer. It is closed when the
	// connection is lost or closed.
	R chan []byte

	// W queues frames for the writer goroutine.
	W chan []byte

	pingInterval time.Duration
	writeTimeout time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, pingInterval, writeTimeout time.Duration) *Client {
	if conn == nil {
		return nil
	}

	c := &Client{
		Conn:         conn,
		R:            make(chan []byte, 128),
		W:            make(chan []byte, 128),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
	}

	go c.runReader()
	go c.runWriter()
	return c
}

func (c *Client) runReader() {
	defer close(c.R)

	pongWait := 2 * c.pingInterval
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		t, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}

		if t != websocket.TextMessage {
			continue
		}

		select {
		case c.R <- msg:
		case <-c.closed:
			return
		}
	}
}

func (c *Client) runWriter() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.W:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Conn.Close()
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.Conn.Close()
				return
			}

		case <-c.closed:
			return
		}
	}
}

// Write queues msg. It blocks while the queue is full and fails once the
// client is closed.
func (c *Client) Write(msg []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	select {
	case c.W <- msg:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// Close sends a close frame with the given code and releases the connection.
// Only the first call has an effect.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(c.writeTimeout)
		c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		close(c.closed)
		c.Conn.Close()
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.closed
}
