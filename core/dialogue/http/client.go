// Package http carries the dialogue channel over plain request/response
// HTTP. Each message is one POST and the reply frame is the response body.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/koscakluka/ema-voiceloop/core/dialogue"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/koscakluka/ema-voiceloop/core/dialogue/http"

var tracer = otel.Tracer(scopeName)

// Client posts messages to a single endpoint. It has no persistent
// connection, so subscribers see it as connected from the start.
type Client struct {
	dialogue.Subscribers

	endpoint string
	header   http.Header
	client   *http.Client

	// sendMu keeps replies in the order their messages were sent
	sendMu sync.Mutex
}

type Option func(*Client)

func WithHeader(header http.Header) Option {
	return func(c *Client) { c.header = header.Clone() }
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint: endpoint,
		header:   http.Header{},
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.Connected()

	return client
}

// Send posts the message and delivers the reply frame, if any, to
// subscribers before returning.
func (c *Client) Send(ctx context.Context, message dialogue.Message) error {
	ctx, span := tracer.Start(ctx, "send dialogue message", trace.WithAttributes(
		attribute.String("message.id", message.ID),
		attribute.Bool("message.system_prompt", message.IsSystemPrompt),
	))
	defer span.End()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	frame, err := c.post(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if frame != nil {
		span.SetAttributes(attribute.String("frame.type", string(frame.Type)))
		c.Frame(*frame)
	}
	return nil
}

func (c *Client) post(ctx context.Context, message dialogue.Message) (*dialogue.InboundFrame, error) {
	body, err := json.Marshal(dialogue.NewOutboundFrame(message))
	if err != nil {
		return nil, fmt.Errorf("error encoding dialogue message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, bytes.TrimSpace(respBody))
	case len(bytes.TrimSpace(respBody)) == 0:
		return nil, nil
	}

	frame, err := dialogue.DecodeInbound(respBody)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}
