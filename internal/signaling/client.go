package signaling

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"speakmatch/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("signaling client closed")

// Client is the participant side of the relay: one WebSocket onto one
// session's channel. Sends surface transport errors to the caller so it can
// decide between retrying (idempotent control types) and renegotiating
// (offer/answer).
type Client struct {
	conn     *websocket.Conn
	incoming chan models.SignalMessage
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

// Dial connects to a relay endpoint, e.g.
// ws://host/api/v1/session/{id}/ws?token={token}.
func Dial(relayURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan models.SignalMessage, 32),
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.pingLoop()

	return c, nil
}

// readPump delivers relayed messages until the connection drops.
func (c *Client) readPump() {
	defer close(c.incoming)

	for {
		var msg models.SignalMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// pingLoop keeps the connection alive while the session is idle.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send publishes one signal message to the session channel. The relay echoes
// it back to every subscriber, the sender included.
func (c *Client) Send(msg models.SignalMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}
	return nil
}

// Incoming returns the channel of relayed messages. It closes when the
// connection drops or the client is closed.
func (c *Client) Incoming() <-chan models.SignalMessage {
	return c.incoming
}

// Close tears the connection down. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()

	return c.conn.Close()
}
