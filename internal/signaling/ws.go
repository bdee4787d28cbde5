package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single frame write when ctx carries no deadline.
const writeWait = 10 * time.Second

// Channel is the plugin websocket. Writes are serialized; reads happen on the
// goroutine running Listen.
type Channel struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the plugin websocket at url.
func Dial(ctx context.Context, url string) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to plugin socket: %w", err)
	}
	return &Channel{conn: conn}, nil
}

// NewChannel wraps an established connection.
func NewChannel(conn *websocket.Conn) *Channel {
	return &Channel{conn: conn}
}

// Send writes one packet on channel with payload encoded as JSON.
func (c *Channel) Send(ctx context.Context, channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(Packet{Channel: channel, Payload: raw}); err != nil {
		return fmt.Errorf("write %s: %w", channel, err)
	}
	return nil
}

// Listen reads packets and hands each to fn until the connection fails or
// ctx is cancelled. Cancelling ctx closes the connection.
func (c *Channel) Listen(ctx context.Context, fn func(Packet)) error {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		var pkt Packet
		if err := c.conn.ReadJSON(&pkt); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read plugin socket: %w", err)
		}
		fn(pkt)
	}
}

// Close sends a normal closure and closes the connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
