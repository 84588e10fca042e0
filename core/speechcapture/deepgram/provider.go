// Package deepgram recognizes speech continuously over the deepgram live
// transcription websocket.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voiceloop/core/speechcapture"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const (
	scopeName = "github.com/koscakluka/ema-voiceloop/core/speechcapture/deepgram"

	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLocale    = "en-US"

	keepAliveInterval = 5 * time.Second
	closeStreamGrace  = 2 * time.Second
)

var ErrCaptureRunning = errors.New("deepgram capture already running")

type Provider struct {
	source speechcapture.AudioSource

	apiKey    string
	model     string
	listenURL string
	logger    *slog.Logger

	mu      sync.Mutex
	current *capture
}

type Option func(*Provider)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) { p.apiKey = apiKey }
}

func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

func WithListenURL(listenURL string) Option {
	return func(p *Provider) { p.listenURL = listenURL }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewProvider(source speechcapture.AudioSource, opts ...Option) *Provider {
	provider := &Provider{
		source:    source,
		model:     defaultModel,
		listenURL: defaultListenURL,
		logger:    otelslog.NewLogger(scopeName),
	}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		provider.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// StartCapture opens a transcription stream and starts feeding it from the
// audio source.
func (p *Provider) StartCapture(ctx context.Context, opts ...speechcapture.CaptureOption) error {
	options := speechcapture.NewCaptureOptions(opts...)
	if options.Locale == "" {
		options.Locale = defaultLocale
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return ErrCaptureRunning
	}
	if p.apiKey == "" {
		return fmt.Errorf("deepgram api key not found")
	}

	encoding, err := convertEncoding(p.source.EncodingInfo())
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := p.connectWebsocket(ctx, *encoding, options.Locale)
	if err != nil {
		return err
	}

	captureCtx, cancel := context.WithCancel(context.Background())
	c := &capture{conn: conn, options: options, cancel: cancel, logger: p.logger}
	c.touch()
	c.onEnded = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.current == c {
			p.detachLocked()
		}
	}

	if err := p.source.StartCapture(captureCtx, c.sendAudio); err != nil {
		cancel()
		_ = conn.Close()
		return fmt.Errorf("failed to start audio source: %w", err)
	}

	p.current = c
	go c.readMessages()
	go c.keepAlive(captureCtx)

	return nil
}

// StopCapture asks deepgram to flush and close the stream. The ended
// callback fires once the stream is gone, but a new capture may start
// right away.
func (p *Provider) StopCapture() error {
	p.mu.Lock()
	c := p.current
	if c != nil {
		p.detachLocked()
	}
	p.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.closeStream()
}

func (p *Provider) detachLocked() {
	p.current = nil
	if err := p.source.StopCapture(); err != nil {
		p.logger.Warn("failed to stop audio source", "error", err)
	}
}

func (p *Provider) connectWebsocket(ctx context.Context, encoding encodingInfo, locale string) (*websocket.Conn, error) {
	listenURL, err := url.Parse(p.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram listen url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", strconv.Itoa(encoding.Channels))
	queryParams.Set("model", p.model)
	queryParams.Set("language", locale)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + p.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type capture struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	options    speechcapture.CaptureOptions
	transcript transcript
	logger     *slog.Logger

	lastAudio atomic.Int64
	closing   atomic.Bool

	cancel  context.CancelFunc
	onEnded func()
	endOnce sync.Once
}

func (c *capture) touch() { c.lastAudio.Store(time.Now().UnixNano()) }

func (c *capture) sendAudio(audio []byte) {
	if c.closing.Load() {
		return
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.touch()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		c.logger.Debug("failed to write audio to deepgram", "error", err)
	}
}

func (c *capture) writeControl(msgType api.TypeResponse) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	return c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(msgType)})
}

func (c *capture) closeStream() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.writeControl(api.TypeCloseStreamResponse); err != nil {
		c.end()
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}

	// deepgram closes the socket after flushing, force it if it does not
	time.AfterFunc(closeStreamGrace, func() { _ = c.conn.Close() })
	return nil
}

func (c *capture) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.closing.Load() {
				continue
			}
			if time.Since(time.Unix(0, c.lastAudio.Load())) < keepAliveInterval {
				continue
			}
			if err := c.writeControl("KeepAlive"); err != nil {
				c.logger.Debug("failed to send deepgram keep alive", "error", err)
			}
			c.touch()
		}
	}
}

func (c *capture) readMessages() {
	defer c.end()

	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.options.ErrorCallback(fmt.Errorf("deepgram stream failed: %w", err))
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		partial, changed, err := c.transcript.process(msg)
		if err != nil {
			c.logger.Warn("skipping deepgram message", "error", err)
			continue
		}
		if changed {
			c.options.PartialCallback(partial)
		}
	}
}

func (c *capture) end() {
	c.endOnce.Do(func() {
		c.closing.Store(true)
		c.cancel()
		_ = c.conn.Close()
		c.onEnded()
		c.options.EndedCallback()
	})
}
