// Package wsconn is a thin wrapper over gorilla/websocket that dials the
// speech service, classifies a 403 handshake rejection as a DRM/auth
// failure, and applies read deadlines per received frame.
package wsconn

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"github.com/umputun/edge-tts/internal/xerrors"
)

// MessageType mirrors gorilla/websocket's frame type constants so callers
// outside this package never import gorilla directly.
type MessageType int

const (
	TextMessage   MessageType = MessageType(websocket.TextMessage)
	BinaryMessage MessageType = MessageType(websocket.BinaryMessage)
)

// DialOptions configures a single channel-open attempt.
type DialOptions struct {
	URL            string
	Header         http.Header
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
	Proxy          string
}

// Conn is an open synthesis channel.
type Conn struct {
	ws             *websocket.Conn
	receiveTimeout time.Duration
}

// DRMError reports a handshake rejected with 403 Forbidden, signaling the
// connection token needs regenerating after a clock-skew adjustment.
type DRMError struct {
	Response *http.Response
}

func (e *DRMError) Error() string {
	return fmt.Sprintf("wsconn: handshake rejected with status %d", e.Response.StatusCode)
}

// Unwrap lets callers match this error with errors.Is(err, xerrors.ErrDRM).
func (e *DRMError) Unwrap() error { return xerrors.ErrDRM }

// Dial opens a channel, classifying a 403 response as a *DRMError and any
// other dial failure as xerrors.ErrWebSocket.
func Dial(ctx context.Context, opts DialOptions) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.ConnectTimeout,
	}

	if opts.Proxy != "" {
		proxyDialer, err := newProxyDialer(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid proxy: %v", xerrors.ErrWebSocket, err)
		}
		dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return proxyDialer.Dial(network, addr)
		}
	}

	ws, resp, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return nil, &DRMError{Response: resp}
		}
		return nil, fmt.Errorf("%w: %v", xerrors.ErrWebSocket, err)
	}

	return &Conn{ws: ws, receiveTimeout: opts.ReceiveTimeout}, nil
}

// WriteText sends a UTF-8 text frame.
func (c *Conn) WriteText(data []byte) error {
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %v", xerrors.ErrWebSocket, err)
	}
	return nil
}

// ReadFrame reads the next frame, bounding the wait by the configured
// receive timeout.
func (c *Conn) ReadFrame() (MessageType, []byte, error) {
	if c.receiveTimeout > 0 {
		if err := c.ws.SetReadDeadline(time.Now().Add(c.receiveTimeout)); err != nil {
			return 0, nil, fmt.Errorf("%w: set read deadline: %v", xerrors.ErrWebSocket, err)
		}
	}

	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read: %v", xerrors.ErrWebSocket, err)
	}
	return MessageType(mt), data, nil
}

// Close closes the underlying connection; it is safe to call more than once.
func (c *Conn) Close() error {
	if c.ws == nil {
		return nil
	}
	err := c.ws.Close()
	c.ws = nil
	return err
}

// WatchContext closes the connection as soon as ctx is done, unblocking any
// in-flight ReadFrame call.
func (c *Conn) WatchContext(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
}

func newProxyDialer(proxyURL string) (proxy.Dialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, err
	}
	return proxy.FromURL(u, proxy.Direct)
}
