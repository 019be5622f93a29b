// Package websocket wraps a gorilla websocket connection behind a
// single-writer queue so the token and presence streams can push frames
// without coordinating on the socket.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

// Conn serializes all writes through one goroutine; gorilla connections do
// not tolerate concurrent writers.
type Conn struct {
	ws        *websocket.Conn
	writeCh   chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:      ws,
		writeCh: make(chan []byte, 100),
		done:    make(chan struct{}),
	}
	ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go c.writeLoop()
	return c
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// WriteJSON queues one frame for delivery. It fails fast when the peer is
// gone or its queue has been full for the write timeout.
func (c *Conn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.done:
		return ErrConnectionClosed
	}
}

// ReadLoop consumes inbound frames until the peer disconnects. The streams
// are server-push only, so payloads are discarded; reading is still required
// to process control frames and notice the close.
func (c *Conn) ReadLoop() {
	defer c.Close()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Done is closed when the connection is finished, either side.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}
