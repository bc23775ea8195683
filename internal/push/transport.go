// internal/push/transport.go
package push

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Conn is one live transport to the server's event stream. The manager
// never holds more than one.
type Conn interface {
	// Read blocks for the next inbound frame's raw payload.
	Read(ctx context.Context) ([]byte, error)
	// WriteJSON sends one outbound frame.
	WriteJSON(ctx context.Context, v any) error
	// Close tears the transport down.
	Close() error
}

// Dialer opens a transport to the given URL. Swapped for a fake in
// tests.
type Dialer func(ctx context.Context, url string) (Conn, error)

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) WriteJSON(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.conn, v)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// DialWebSocket is the production Dialer.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial push channel: %w", err)
	}
	return &wsConn{conn: conn}, nil
}
