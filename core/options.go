package orchestration

import (
	"context"
	"log/slog"
	"time"

	"github.com/koscakluka/ema-voiceloop/core/audio"
	"github.com/koscakluka/ema-voiceloop/core/conversations"
	"github.com/koscakluka/ema-voiceloop/core/dialogue"
	"github.com/koscakluka/ema-voiceloop/core/events"
	"github.com/koscakluka/ema-voiceloop/core/speechcapture"
)

const defaultMaxCaptureRestarts = 3

type OrchestratorOption func(*Orchestrator)

// WithSpeechCapture configures the recognizer. Without one the
// orchestrator only takes typed input through SendText.
func WithSpeechCapture(provider speechcapture.Provider) OrchestratorOption {
	return func(o *Orchestrator) { o.capture = newSpeechCapture(provider, o.logger) }
}

func WithDialogueChannel(channel dialogue.Channel) OrchestratorOption {
	return func(o *Orchestrator) { o.channel = channel }
}

// AudioPlayer plays one decoded clip, blocking until it drained, failed, or
// ctx was cancelled.
type AudioPlayer interface {
	Play(ctx context.Context, clip audio.Clip) error
}

// WithAudioPlayer configures reply playback. Without one, audio replies are
// recorded but not played.
func WithAudioPlayer(player AudioPlayer) OrchestratorOption {
	return func(o *Orchestrator) { o.playback = newPlaybackController(player) }
}

// WithQuietWindow sets how long the user has to stay silent before the
// utterance is sent. Non-positive values keep the default.
func WithQuietWindow(window time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if window > 0 {
			o.quietWindow = window
		}
	}
}

// WithModel names the model carried on every outbound message.
func WithModel(model string) OrchestratorOption {
	return func(o *Orchestrator) { o.model = model }
}

func WithLocale(locale string) OrchestratorOption {
	return func(o *Orchestrator) {
		if locale != "" {
			o.locale = locale
		}
	}
}

// WithMaxCaptureRestarts bounds how many times in a row a capture that
// ended on its own is re-armed without hearing anything.
func WithMaxCaptureRestarts(restarts int) OrchestratorOption {
	return func(o *Orchestrator) {
		if restarts >= 0 {
			o.maxCaptureRestarts = restarts
		}
	}
}

func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
			if o.capture != nil {
				o.capture.logger = logger
			}
		}
	}
}

type OrchestrateOptions struct {
	onTurnAppended      func(turn conversations.Turn)
	onErrorRaised       func(kind ErrorKind, message string)
	onStateChanged      func(from, to State)
	onTranscript        func(transcript string)
	onConnectionChanged func(connected bool)
	onPlaybackStarted   func(turnID string)
	onPlaybackEnded     func(turnID string, completed bool)
	eventHandler        func(event events.Event)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithTurnAppendedCallback registers a callback for every turn recorded in
// the conversation log, in log order.
func WithTurnAppendedCallback(callback func(turn conversations.Turn)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTurnAppended = callback
	}
}

// WithErrorRaisedCallback registers a callback receiving every surfaced
// error exactly once.
func WithErrorRaisedCallback(callback func(kind ErrorKind, message string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onErrorRaised = callback
	}
}

func WithStateChangedCallback(callback func(from, to State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStateChanged = callback
	}
}

// WithTranscriptCallback registers a callback for the utterance being
// captured. An empty transcript means the utterance was sent or dropped.
func WithTranscriptCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscript = callback
	}
}

func WithConnectionChangedCallback(callback func(connected bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onConnectionChanged = callback
	}
}

func WithPlaybackStartedCallback(callback func(turnID string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onPlaybackStarted = callback
	}
}

func WithPlaybackEndedCallback(callback func(turnID string, completed bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onPlaybackEnded = callback
	}
}

// WithEventHandler receives every event after the typed callbacks ran.
func WithEventHandler(handler func(event events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.eventHandler = handler
	}
}
