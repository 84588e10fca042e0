// Package websocket carries the dialogue channel over one persistent
// websocket connection.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voiceloop/core/dialogue"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-voiceloop/core/dialogue/websocket"

var ErrClosed = errors.New("dialogue connection closed")

type Client struct {
	dialogue.Subscribers

	conn    *websocket.Conn
	writeMu sync.Mutex

	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

type options struct {
	header           http.Header
	handshakeTimeout time.Duration
	logger           *slog.Logger
}

type Option func(*options)

func WithHeader(header http.Header) Option {
	return func(o *options) { o.header = header }
}

func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(o *options) { o.handshakeTimeout = timeout }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Dial opens the connection and starts the read loop. Subscribers are told
// about the connection as soon as they subscribe.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	options := options{handshakeTimeout: 10 * time.Second, logger: otelslog.NewLogger(scopeName)}
	for _, opt := range opts {
		opt(&options)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: options.handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, options.header)
	if err != nil {
		return nil, fmt.Errorf("failed to open dialogue connection to %s: %w", url, err)
	}

	client := &Client{conn: conn, logger: options.logger, done: make(chan struct{})}
	client.Connected()
	go client.readMessages()

	return client, nil
}

func (c *Client) Send(ctx context.Context, message dialogue.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	if err := c.conn.WriteJSON(dialogue.NewOutboundFrame(message)); err != nil {
		return fmt.Errorf("failed to write dialogue message: %w", err)
	}
	return nil
}

// Done is closed once the read loop has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		writeErr := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) {
			err = fmt.Errorf("failed to send close frame: %w", writeErr)
		}

		select {
		case <-c.done:
		case <-time.After(time.Second):
		}

		if closeErr := c.conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close dialogue connection: %w", closeErr))
		}
	})
	return err
}

func (c *Client) readMessages() {
	defer close(c.done)
	defer c.Disconnected()

	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("dialogue connection read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("skipping non-text dialogue frame", "type", msgType)
			continue
		}

		frame, err := dialogue.DecodeInbound(msg)
		if err != nil {
			c.logger.Warn("skipping undecodable dialogue frame", "error", err)
			continue
		}
		c.Frame(frame)
	}
}
