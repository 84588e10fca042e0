// Package speechcapture defines how continuous speech recognizers report
// back to the conversation core.
package speechcapture

import (
	"context"

	"github.com/koscakluka/ema-voiceloop/core/audio"
)

// CaptureOptions carries the callbacks of one capture. Any of them may be
// called from provider goroutines.
type CaptureOptions struct {
	// PartialCallback receives the full transcript recognized so far, not
	// just the newest fragment.
	PartialCallback func(transcript string)
	ErrorCallback   func(err error)
	// EndedCallback fires once when the recognizer stops delivering for this
	// capture, whatever the reason.
	EndedCallback func()

	Locale string
}

type CaptureOption func(*CaptureOptions)

func WithPartialCallback(callback func(transcript string)) CaptureOption {
	return func(o *CaptureOptions) {
		o.PartialCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) CaptureOption {
	return func(o *CaptureOptions) {
		o.ErrorCallback = callback
	}
}

func WithEndedCallback(callback func()) CaptureOption {
	return func(o *CaptureOptions) {
		o.EndedCallback = callback
	}
}

func WithLocale(locale string) CaptureOption {
	return func(o *CaptureOptions) {
		o.Locale = locale
	}
}

// NewCaptureOptions applies opts over no-op callbacks so providers can call
// them unconditionally.
func NewCaptureOptions(opts ...CaptureOption) CaptureOptions {
	options := CaptureOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if options.PartialCallback == nil {
		options.PartialCallback = func(string) {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(error) {}
	}
	if options.EndedCallback == nil {
		options.EndedCallback = func() {}
	}
	return options
}

// Provider is a continuous recognizer. StartCapture returns once the
// capture is live; results arrive through the callbacks until StopCapture.
type Provider interface {
	StartCapture(ctx context.Context, opts ...CaptureOption) error
	StopCapture() error
}

// AudioSource is the microphone a provider listens to.
type AudioSource interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}
