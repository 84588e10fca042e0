package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/koscakluka/ema-voiceloop/core/speechcapture"
)

// speechCapture guards the configured provider so at most one capture is
// live. Every callback is stamped with the capture's session ID so events
// from a capture that was already stopped can be told apart.
type speechCapture struct {
	provider speechcapture.Provider
	logger   *slog.Logger

	// isCapturing reports whether a capture is live.
	isCapturing atomic.Bool
	// sessionID identifies the latest capture; zero before the first one.
	sessionID atomic.Uint64
	// duplicateStarts counts start attempts made while already capturing.
	duplicateStarts atomic.Int64
}

func newSpeechCapture(provider speechcapture.Provider, logger *slog.Logger) *speechCapture {
	return &speechCapture{provider: provider, logger: logger}
}

func (c *speechCapture) IsConfigured() bool { return c != nil && c.provider != nil }
func (c *speechCapture) IsCapturing() bool  { return c != nil && c.isCapturing.Load() }
func (c *speechCapture) SessionID() uint64  { return c.sessionID.Load() }
func (c *speechCapture) DuplicateStarts() int64 {
	return c.duplicateStarts.Load()
}

// Start opens a new capture session. Starting while a capture is live does
// not touch the provider and returns ErrDuplicateCaptureStart.
func (c *speechCapture) Start(ctx context.Context, locale string, post func(runtimeEvent)) (uint64, error) {
	if !c.IsConfigured() {
		return 0, fmt.Errorf("speech capture not configured")
	}

	if !c.isCapturing.CompareAndSwap(false, true) {
		c.duplicateStarts.Add(1)
		c.logger.Warn("ignoring speech capture start while a capture is live", "capture_id", c.sessionID.Load())
		return c.sessionID.Load(), ErrDuplicateCaptureStart
	}

	id := c.sessionID.Add(1)
	err := c.provider.StartCapture(ctx,
		speechcapture.WithLocale(locale),
		speechcapture.WithPartialCallback(func(transcript string) {
			post(capturePartial{captureID: id, transcript: transcript})
		}),
		speechcapture.WithErrorCallback(func(err error) {
			post(captureFailed{captureID: id, err: err})
		}),
		speechcapture.WithEndedCallback(func() {
			// a newer capture owns the flag by now
			if c.sessionID.Load() == id {
				c.isCapturing.Store(false)
			}
			post(captureEnded{captureID: id})
		}),
	)
	if err != nil {
		c.isCapturing.Store(false)
		return 0, fmt.Errorf("failed to start speech capture: %w", err)
	}

	return id, nil
}

// Stop ends the live capture, if any. The provider's ended callback that
// follows is stale by then.
func (c *speechCapture) Stop() error {
	if !c.IsConfigured() {
		return nil
	}

	if !c.isCapturing.CompareAndSwap(true, false) {
		return nil
	}

	// retire the session so its late callbacks are recognisably stale
	c.sessionID.Add(1)
	if err := c.provider.StopCapture(); err != nil {
		return fmt.Errorf("failed to stop speech capture: %w", err)
	}
	return nil
}
