package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeGracePeriod        = time.Second
)

// WebSocketDialer opens websocket connections. The zero value is
// usable.
type WebSocketDialer struct {
	// Header is sent with the handshake request. Typically carries
	// authorization.
	Header http.Header
	// HandshakeTimeout bounds the dial when ctx has no deadline.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each frame write. Zero means the default.
	WriteTimeout time.Duration
}

// Dial connects to endpoint. http/https schemes are rewritten to
// ws/wss.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	wsURL := normalizeEndpoint(endpoint)

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = defaultHandshakeTimeout
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed (status %d): %w", wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", wsURL, err)
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout}, nil
}

func normalizeEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			return nil, err
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return data, nil
		default:
			// Control frames are handled by gorilla; anything else is
			// skipped.
		}
	}
}

func (c *wsConn) WriteFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Ping sends a websocket ping control frame. The session writer uses
// it to keep the connection alive between frames.
func (c *wsConn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		deadline := time.Now().Add(closeGracePeriod)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Pinger is implemented by connections that support keepalive probes.
type Pinger interface {
	Ping() error
}
