// network/connection.go
package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendQueueSize  = 64
)

var (
	// ErrConnClosed is returned by Send after the connection is torn down.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendQueueFull signals a recipient too slow to keep up with the room.
	ErrSendQueueFull = errors.New("send queue full")
)

// Connection is a message-oriented text transport to one client. Send only
// enqueues; a per-connection pump drains the queue so a stalled peer never
// blocks the caller.
type Connection interface {
	Send(message string) error
	ReadText() (string, error)
	Close() error
	RemoteAddr() net.Addr
}

type WSConnection struct {
	conn *websocket.Conn
	send chan string
	done chan struct{}
	once sync.Once
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	c := &WSConnection{
		conn: conn,
		send: make(chan string, sendQueueSize),
		done: make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	return c
}

// Send enqueues one outbound text message. Queue order is delivery order.
func (c *WSConnection) Send(message string) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// ReadText blocks until the next inbound text frame.
func (c *WSConnection) ReadText() (string, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *WSConnection) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
