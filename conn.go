package foanalytics

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"
)

// ============================================================================
// Transport Seam
// ============================================================================

// Conn is the minimal duplex surface the client needs from a websocket.
// Read blocks until a frame arrives or the connection drops; the returned
// error carries the close status when the peer sent a close frame.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a Conn against a fully built connection URL. The default
// dials a real websocket; tests substitute their own.
type Dialer func(ctx context.Context, url string) (Conn, error)

func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(code websocket.StatusCode, reason string) error {
	return c.ws.Close(code, reason)
}
