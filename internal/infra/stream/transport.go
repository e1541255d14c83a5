package stream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/websocket"
)

// Conn is a live transport delivering whole messages.
type Conn interface {
	// ReadMessage blocks until the next message arrives or the transport
	// fails. After Close it returns an error.
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens transports to the event feed. Dial must return promptly once
// ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error)
}

// WebSocketDialer dials the event feed over WebSocket.
type WebSocketDialer struct {
	// Origin is sent in the handshake; it defaults to the endpoint's
	// http(s) equivalent.
	Origin string
	// MaxMessageBytes bounds a single frame; zero means the library default.
	MaxMessageBytes int
	NetDialer       *net.Dialer
}

var _ Dialer = (*WebSocketDialer)(nil)

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		var err error
		if origin, err = originFor(endpoint); err != nil {
			return nil, err
		}
	}

	cfg, err := websocket.NewConfig(endpoint, origin)
	if err != nil {
		return nil, fmt.Errorf("invalid stream endpoint %q: %w", endpoint, err)
	}
	cfg.Header = header
	cfg.Dialer = d.NetDialer

	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	if d.MaxMessageBytes > 0 {
		ws.MaxPayloadBytes = d.MaxMessageBytes
	}
	return &wsConn{ws: ws}, nil
}

func originFor(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid stream endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path, u.RawQuery = "", ""
	return u.String(), nil
}

type wsConn struct{ ws *websocket.Conn }

func (c *wsConn) ReadMessage() ([]byte, error) {
	var msg []byte
	if err := websocket.Message.Receive(c.ws, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *wsConn) Close() error { return c.ws.Close() }
