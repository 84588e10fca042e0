package orchestration

import (
	"fmt"

	"github.com/koscakluka/ema-voiceloop/core/dialogue"
)

// runtimeEvent is everything the runtime goroutine reacts to: UI commands
// and adapter callbacks alike.
type runtimeEvent interface{ runtimeEvent() }

type startCommand struct {
	prompt string
	reply  chan<- error
}

type stopCommand struct{ reply chan<- error }

type sendTextCommand struct {
	text  string
	reply chan<- error
}

type closeCommand struct{}

type capturePartial struct {
	captureID  uint64
	transcript string
}

type captureFailed struct {
	captureID uint64
	err       error
}

type captureEnded struct{ captureID uint64 }

type utteranceFinalized struct {
	captureID  uint64
	generation uint64
	text       string
}

type dialogueResponded struct{ response dialogue.Response }

type dialogueServiceError struct{ message string }

type dialogueSendFailed struct {
	messageID string
	err       error
}

type dialogueConnectionChanged struct{ connected bool }

type playbackFinished struct {
	playbackID uint64
	err        error
}

func (startCommand) runtimeEvent()              {}
func (stopCommand) runtimeEvent()               {}
func (sendTextCommand) runtimeEvent()           {}
func (closeCommand) runtimeEvent()              {}
func (capturePartial) runtimeEvent()            {}
func (captureFailed) runtimeEvent()             {}
func (captureEnded) runtimeEvent()              {}
func (utteranceFinalized) runtimeEvent()        {}
func (dialogueResponded) runtimeEvent()         {}
func (dialogueServiceError) runtimeEvent()      {}
func (dialogueSendFailed) runtimeEvent()        {}
func (dialogueConnectionChanged) runtimeEvent() {}
func (playbackFinished) runtimeEvent()          {}

// dispatch is the only place runtime state changes.
func (o *Orchestrator) dispatch(event runtimeEvent) {
	if o.State() == StateClosed {
		o.rejectAfterClose(event)
		return
	}

	switch e := event.(type) {
	case startCommand:
		e.reply <- o.handleStart(e.prompt)
	case stopCommand:
		o.handleStop()
		e.reply <- nil
	case sendTextCommand:
		e.reply <- o.handleSendText(e.text)
	case closeCommand:
		o.handleClose()
	case capturePartial:
		o.handleCapturePartial(e)
	case captureFailed:
		o.handleCaptureFailed(e)
	case captureEnded:
		o.handleCaptureEnded(e)
	case utteranceFinalized:
		o.handleUtteranceFinalized(e)
	case dialogueResponded:
		o.handleResponse(e.response)
	case dialogueServiceError:
		o.handleServiceError(e.message)
	case dialogueSendFailed:
		o.handleSendFailed(e)
	case dialogueConnectionChanged:
		o.handleConnectionChanged(e.connected)
	case playbackFinished:
		o.handlePlaybackFinished(e)
	default:
		o.logger.Warn("ignoring unknown runtime event", "event", eventName(event))
	}
}

func (o *Orchestrator) rejectAfterClose(event runtimeEvent) {
	switch e := event.(type) {
	case startCommand:
		e.reply <- ErrClosed
	case stopCommand:
		e.reply <- nil
	case sendTextCommand:
		e.reply <- ErrClosed
	default:
		o.logger.Debug("ignoring event after close", "event", eventName(event))
	}
}

func eventName(event runtimeEvent) string {
	switch event.(type) {
	case startCommand:
		return "start"
	case stopCommand:
		return "stop"
	case sendTextCommand:
		return "send_text"
	case closeCommand:
		return "close"
	case capturePartial:
		return "capture.partial"
	case captureFailed:
		return "capture.error"
	case captureEnded:
		return "capture.ended"
	case utteranceFinalized:
		return "debouncer.finalized"
	case dialogueResponded:
		return "dialogue.response"
	case dialogueServiceError:
		return "dialogue.service_error"
	case dialogueSendFailed:
		return "dialogue.send_failed"
	case dialogueConnectionChanged:
		return "dialogue.connection_changed"
	case playbackFinished:
		return "playback.finished"
	default:
		return fmt.Sprintf("%T", event)
	}
}
