// Package runtime is the connection/session layer: it owns live client
// connections, the tasks executing on their behalf, and the pending
// human decisions, and it speaks the client message protocol.
package runtime

import (
	"context"

	"github.com/coder/websocket"
)

// Transport is one client's bidirectional channel. The production
// implementation wraps a WebSocket; tests substitute in-memory pipes.
type Transport interface {
	// Write delivers one serialized event to the client.
	Write(ctx context.Context, data []byte) error

	// Read blocks for the next client message.
	Read(ctx context.Context) ([]byte, error)

	// Close terminates the channel with a status code and reason.
	Close(code websocket.StatusCode, reason string) error
}

// WebSocketTransport adapts a coder/websocket connection.
type WebSocketTransport struct {
	Conn *websocket.Conn
}

// Write sends a text frame.
func (t *WebSocketTransport) Write(ctx context.Context, data []byte) error {
	return t.Conn.Write(ctx, websocket.MessageText, data)
}

// Read returns the next frame's payload.
func (t *WebSocketTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.Conn.Read(ctx)
	return data, err
}

// Close closes the underlying connection.
func (t *WebSocketTransport) Close(code websocket.StatusCode, reason string) error {
	return t.Conn.Close(code, reason)
}
