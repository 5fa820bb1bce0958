// Package groupws provides the protobuf-framed WebSocket connection over
// which the server pushes signed group changes.
package groupws

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/gwillem/groupsync-go/internal/groupproto"
)

// Conn wraps a WebSocket connection with protobuf framing.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens a WebSocket connection to the given URL.
// If tlsConf is non-nil, it is used for the TLS handshake.
// Optional HTTP headers are added to the upgrade request.
func Dial(ctx context.Context, url string, tlsConf *tls.Config, headers ...http.Header) (*Conn, error) {
	opts := &websocket.DialOptions{}
	if tlsConf != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConf,
			},
		}
	}
	if len(headers) > 0 {
		opts.HTTPHeader = headers[0]
	}
	ws, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("groupws: dial: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// ReadPush reads and unmarshals one pushed change notification.
func (c *Conn) ReadPush(ctx context.Context) (*groupproto.GroupPush, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("groupws: read: %w", err)
	}
	push := new(groupproto.GroupPush)
	if err := push.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("groupws: unmarshal: %w", err)
	}
	return push, nil
}

// Ack acknowledges a pushed notification by echoing its id.
func (c *Conn) Ack(ctx context.Context, id uint64, status uint32) error {
	ack := &groupproto.GroupPushAck{ID: id, Status: status}
	if err := c.ws.Write(ctx, websocket.MessageBinary, ack.Marshal()); err != nil {
		return fmt.Errorf("groupws: write ack: %w", err)
	}
	return nil
}

// Close sends a normal closure frame and then closes the connection.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// CloseNow closes the connection immediately without a close frame.
func (c *Conn) CloseNow() error {
	return c.ws.CloseNow()
}
