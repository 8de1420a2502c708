package stream

import (
	"encoding/json"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/robotsim/robots/pkg/streaming"
)

// client is one connection with a single write goroutine.
type client struct {
	conn   *ws.Conn
	remote string
	send   chan []byte

	mu     sync.Mutex // guards closed and send
	closed bool
	done   chan struct{}
}

func newClient(conn *ws.Conn) *client {
	return &client{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan []byte, sendChSize),
		done:   make(chan struct{}),
	}
}

// trySend queues data without blocking and reports false when the buffer
// is full. Sends after close are discarded.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// writeLoop drains send and writes messages to the WebSocket until the
// client is closed or a write fails.
func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func marshalAck(ack streaming.AckMessage) ([]byte, error) {
	return json.Marshal(ack)
}

func encodeError(forType string, err error) []byte {
	data, _ := json.Marshal(streaming.ErrorMessage{
		Type:  streaming.TypeError,
		For:   forType,
		Error: err.Error(),
	})
	return data
}
