package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voiceloop/core/conversations"
	"github.com/koscakluka/ema-voiceloop/core/dialogue"
	"github.com/koscakluka/ema-voiceloop/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// runtimeSession is the state of the current conversation session. Only the
// runtime goroutine reads or writes it.
type runtimeSession struct {
	id string

	// captureID is the capture whose events are current; zero when none
	captureID       uint64
	captureRestarts int
	debouncer       *silenceDebouncer

	outstandingID string
	cancelSend    context.CancelFunc
	turnSpan      trace.Span

	// playbackID only grows so completions of stopped playbacks go stale
	playbackID     uint64
	playbackTurnID string
}

func (o *Orchestrator) run() {
	defer close(o.done)

	for {
		item, ok := o.queue.pop()
		if !ok {
			return
		}

		o.logger.Debug("processing runtime event",
			"event", eventName(item.value),
			"state", o.State().String(),
			"queued_for", time.Since(item.queuedAt),
		)
		o.dispatch(item.value)
	}
}

func (o *Orchestrator) handleStart(prompt string) error {
	if state := o.State(); state != StateIdle {
		return o.raise(newError(ErrorKindSessionActive, fmt.Sprintf("cannot start a conversation while %s", state), ErrSessionActive))
	}
	if strings.TrimSpace(prompt) == "" {
		return o.raise(newError(ErrorKindEmptyPrompt, "the system prompt is empty", ErrEmptyPrompt))
	}

	o.session = runtimeSession{id: uuid.NewString(), playbackID: o.session.playbackID}
	o.conversation.reset(o.session.id)
	o.listening.Store(true)

	o.appendTurn(conversations.NewTurn(conversations.RoleSystemPrompt, prompt, nil))
	o.send(dialogue.NewSystemPrompt(prompt, o.model), conversations.RoleSystemPrompt)
	o.setState(StateAwaitingResponse)
	return nil
}

func (o *Orchestrator) handleStop() {
	wasCapturing := o.State().isCapturing()

	o.quiesce()
	o.listening.Store(false)
	if wasCapturing {
		o.emit(events.NewUserTranscriptUpdated(o.session.id, ""))
	}
	o.setState(StateIdle)
}

func (o *Orchestrator) handleSendText(text string) error {
	if o.session.id == "" {
		return o.raise(newError(ErrorKindNoSession, "start a conversation before sending text", ErrNoSession))
	}
	if strings.TrimSpace(text) == "" {
		return o.raise(newError(ErrorKindEmptyPrompt, "the message is empty", ErrEmptyPrompt))
	}

	state := o.State()
	switch state {
	case StateAwaitingResponse, StatePlayingAudio:
		return o.raise(newError(ErrorKindTurnInProgress, fmt.Sprintf("cannot send text while %s", state), ErrTurnInProgress))
	}

	o.cancelDebouncer()
	o.stopCapture()
	if state.isCapturing() {
		o.emit(events.NewUserTranscriptUpdated(o.session.id, ""))
	}

	o.appendTurn(conversations.NewTurn(conversations.RoleUser, text, nil))
	o.send(dialogue.NewUtterance(text, o.model), conversations.RoleUser)
	o.setState(StateAwaitingResponse)
	return nil
}

func (o *Orchestrator) handleClose() {
	o.quiesce()
	o.listening.Store(false)
	if o.unsubscribe != nil {
		o.unsubscribe()
	}

	o.setState(StateClosed)
	o.queue.close()
	if o.dispatcher != nil {
		o.dispatcher.Close()
	}
}

func (o *Orchestrator) handleCapturePartial(event capturePartial) {
	if event.captureID != o.session.captureID || !o.State().isCapturing() {
		o.logger.Debug("ignoring partial transcript from stale capture", "capture_id", event.captureID)
		return
	}

	o.session.captureRestarts = 0
	o.emit(events.NewUserTranscriptUpdated(o.session.id, event.transcript))
	o.session.debouncer.OnPartialTranscript(event.transcript)
	o.setState(StateDebouncing)
}

func (o *Orchestrator) handleUtteranceFinalized(event utteranceFinalized) {
	if event.captureID != o.session.captureID || o.State() != StateDebouncing {
		o.logger.Debug("ignoring stale finalized utterance", "capture_id", event.captureID)
		return
	}
	// a partial queued ahead of this event re-armed the quiet window
	if debouncer := o.session.debouncer; debouncer == nil || debouncer.Generation() != event.generation {
		o.logger.Debug("ignoring finalized utterance superseded by a newer partial", "capture_id", event.captureID)
		return
	}

	o.emit(events.NewUserTranscriptUpdated(o.session.id, ""))
	if strings.TrimSpace(event.text) == "" {
		o.logger.Debug("dropping blank utterance")
		if o.capture.IsCapturing() {
			o.setState(StateCapturing)
		} else {
			o.restartCaptureOrIdle()
		}
		return
	}

	o.session.debouncer = nil
	o.stopCapture()

	o.appendTurn(conversations.NewTurn(conversations.RoleUser, event.text, nil))
	o.send(dialogue.NewUtterance(event.text, o.model), conversations.RoleUser)
	o.setState(StateAwaitingResponse)
}

func (o *Orchestrator) handleCaptureFailed(event captureFailed) {
	if event.captureID != o.session.captureID || !o.State().isCapturing() {
		o.logger.Debug("ignoring error from stale capture", "capture_id", event.captureID, "error", event.err)
		return
	}

	o.quiesce()
	o.listening.Store(false)
	o.emit(events.NewUserTranscriptUpdated(o.session.id, ""))
	o.raise(newError(ErrorKindCapture, "speech capture failed", event.err))
	o.setState(StateIdle)
}

func (o *Orchestrator) handleCaptureEnded(event captureEnded) {
	if event.captureID != o.session.captureID {
		o.logger.Debug("ignoring end of stale capture", "capture_id", event.captureID)
		return
	}

	switch o.State() {
	case StateDebouncing:
		// what was heard so far still gets finalized
		o.logger.Debug("speech capture ended while debouncing", "capture_id", event.captureID)
	case StateCapturing:
		o.restartCaptureOrIdle()
	}
}

func (o *Orchestrator) handleResponse(response dialogue.Response) {
	if state := o.State(); state != StateAwaitingResponse {
		o.logger.Debug("ignoring response while not awaiting one", "state", state.String())
		return
	}
	if response.ReplyTo != "" && response.ReplyTo != o.session.outstandingID {
		o.logger.Debug("ignoring response to a stale message", "reply_to", response.ReplyTo)
		return
	}

	o.session.outstandingID = ""
	o.releaseSend()

	turn := conversations.NewTurn(conversations.RoleAssistant, response.Text, response.Audio)
	o.appendTurn(turn)
	if span := o.session.turnSpan; span != nil {
		span.SetAttributes(attribute.Int("turn.response_audio_bytes", len(response.Audio)))
	}

	if response.HasAudio() {
		if o.playback.IsConfigured() {
			o.startPlayback(turn)
			return
		}
		o.logger.Debug("no audio player configured, skipping reply audio", "turn_id", turn.ID)
	}

	o.endTurn(nil)
	o.resumeListening()
}

func (o *Orchestrator) handleServiceError(message string) {
	if span := o.session.turnSpan; span != nil {
		span.AddEvent("service error", trace.WithAttributes(attribute.String("error", message)))
	}
	o.raise(newError(ErrorKindService, message, nil))
}

func (o *Orchestrator) handleSendFailed(event dialogueSendFailed) {
	if event.messageID != o.session.outstandingID {
		o.logger.Debug("ignoring send failure of a stale message", "message_id", event.messageID, "error", event.err)
		return
	}

	if span := o.session.turnSpan; span != nil {
		span.RecordError(event.err)
	}
	o.raise(newError(ErrorKindService, "failed to send message", event.err))
}

func (o *Orchestrator) handleConnectionChanged(connected bool) {
	o.emit(events.NewDialogueConnectionChanged(o.session.id, connected))

	if !connected && o.State() == StateAwaitingResponse {
		o.raise(newError(ErrorKindService, "dialogue channel disconnected while waiting for a reply", nil))
	}
}

func (o *Orchestrator) handlePlaybackFinished(event playbackFinished) {
	if event.playbackID != o.session.playbackID || o.State() != StatePlayingAudio {
		o.logger.Debug("ignoring stale playback completion", "playback_id", event.playbackID)
		return
	}

	turnID := o.session.playbackTurnID
	o.session.playbackTurnID = ""
	o.emit(events.NewAssistantPlaybackEnded(o.session.id, turnID, event.err == nil))

	switch {
	case event.err == nil, isPlaybackStopped(event.err):
		o.endTurn(nil)
	case IsKind(event.err, ErrorKindPlaybackBusy):
		o.endTurn(event.err)
		o.raise(asError(ErrorKindPlaybackBusy, event.err))
		o.handleStop()
		return
	default:
		o.logger.Warn("reply audio lost", "turn_id", turnID, "error", event.err)
		o.endTurn(event.err)
		o.raise(asError(ErrorKindPlayback, event.err))
	}

	o.resumeListening()
}

func (o *Orchestrator) startPlayback(turn conversations.Turn) {
	o.session.playbackID++
	id := o.session.playbackID
	o.session.playbackTurnID = turn.ID

	o.setState(StatePlayingAudio)
	o.emit(events.NewAssistantPlaybackStarted(o.session.id, turn.ID))

	ctx := o.baseContext
	if span := o.session.turnSpan; span != nil {
		ctx = trace.ContextWithSpan(ctx, span)
	}
	payload := turn.Audio
	go func() {
		o.post(playbackFinished{playbackID: id, err: o.playback.Play(ctx, payload)})
	}()
}

func (o *Orchestrator) resumeListening() {
	if o.listening.Load() {
		o.rearmCapture()
		return
	}
	o.setState(StateIdle)
}

func (o *Orchestrator) rearmCapture() {
	if !o.capture.IsConfigured() {
		o.logger.Debug("no speech capture configured, waiting for typed input")
		o.setState(StateIdle)
		return
	}

	o.cancelDebouncer()
	id, err := o.capture.Start(o.baseContext, o.locale, o.post)
	if err != nil {
		if errors.Is(err, ErrDuplicateCaptureStart) {
			o.raise(newError(ErrorKindDuplicateCapture, "speech capture was started twice", err))
		} else {
			o.raise(newError(ErrorKindCapture, "could not start listening", err))
		}
		o.handleStop()
		return
	}

	o.session.captureID = id
	o.session.debouncer = newSilenceDebouncer(o.quietWindow, func(generation uint64, text string) {
		o.post(utteranceFinalized{captureID: id, generation: generation, text: text})
	})
	o.setState(StateCapturing)
}

func (o *Orchestrator) restartCaptureOrIdle() {
	o.cancelDebouncer()
	o.session.captureID = 0

	if o.listening.Load() && o.session.captureRestarts < o.maxCaptureRestarts {
		o.session.captureRestarts++
		o.logger.Debug("speech capture ended, listening again", "restart", o.session.captureRestarts)
		o.rearmCapture()
		return
	}

	o.logger.Warn("speech capture keeps ending without input, no longer listening", "restarts", o.session.captureRestarts)
	o.listening.Store(false)
	o.setState(StateIdle)
}

// quiesce cancels every outstanding suspension: the quiet window, the
// capture, the playback and the send.
func (o *Orchestrator) quiesce() {
	o.cancelDebouncer()
	o.stopCapture()

	o.session.playbackID++
	if turnID := o.session.playbackTurnID; turnID != "" {
		o.session.playbackTurnID = ""
		o.emit(events.NewAssistantPlaybackEnded(o.session.id, turnID, false))
	}
	if err := o.playback.Stop(); err != nil {
		o.logger.Warn("failed to stop playback", "error", err)
	}

	o.session.outstandingID = ""
	o.releaseSend()
	o.endTurn(nil)
}

func (o *Orchestrator) stopCapture() {
	o.session.captureID = 0
	if err := o.capture.Stop(); err != nil {
		o.logger.Warn("failed to stop speech capture", "error", err)
	}
}

func (o *Orchestrator) cancelDebouncer() {
	if o.session.debouncer != nil {
		o.session.debouncer.Cancel()
		o.session.debouncer = nil
	}
}

func (o *Orchestrator) send(message dialogue.Message, role conversations.Role) {
	o.endTurn(nil)

	ctx, span := tracer.Start(o.baseContext, "conversation turn", trace.WithAttributes(
		attribute.String("conversation.session_id", o.session.id),
		attribute.String("turn.role", string(role)),
		attribute.String("turn.message_id", message.ID),
		attribute.Int("turn.text_length", len(message.Text)),
	))
	ctx, cancel := context.WithCancel(ctx)

	o.session.turnSpan = span
	o.session.outstandingID = message.ID
	o.session.cancelSend = cancel

	go func() {
		if err := o.channel.Send(ctx, message); err != nil {
			o.post(dialogueSendFailed{messageID: message.ID, err: err})
		}
	}()
}

func (o *Orchestrator) releaseSend() {
	if o.session.cancelSend != nil {
		o.session.cancelSend()
		o.session.cancelSend = nil
	}
}

func (o *Orchestrator) endTurn(err error) {
	span := o.session.turnSpan
	if span == nil {
		return
	}
	o.session.turnSpan = nil

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("turn.final_state", o.State().String()))
	span.End()
}

func (o *Orchestrator) appendTurn(turn conversations.Turn) {
	o.conversation.append(turn)
	o.emit(events.NewTurnAppended(o.session.id, turn))
}

func (o *Orchestrator) setState(to State) {
	from := o.State()
	if from == to {
		return
	}

	o.state.Store(int32(to))
	o.emit(events.NewStateChanged(o.session.id, from.String(), to.String()))
}

// raise records err in the audit log and surfaces it to the UI exactly
// once.
func (o *Orchestrator) raise(err *Error) *Error {
	o.errorsMu.Lock()
	o.errs = append(o.errs, err)
	o.errorsMu.Unlock()

	switch err.Kind {
	case ErrorKindEmptyPrompt, ErrorKindSessionActive, ErrorKindTurnInProgress, ErrorKindNoSession:
		o.logger.Info("rejected user request", "kind", string(err.Kind), "error", err.Error())
	case ErrorKindPlayback, ErrorKindService:
		o.logger.Warn("conversation error", "kind", string(err.Kind), "error", err.Error())
	default:
		o.logger.Error("conversation error", "kind", string(err.Kind), "error", err.Error())
	}

	o.emit(events.NewErrorRaised(o.session.id, string(err.Kind), err.Error()))
	return err
}

func (o *Orchestrator) emit(event events.Event) {
	if o.dispatcher != nil {
		o.dispatcher.Emit(event)
	}
}

func asError(kind ErrorKind, err error) *Error {
	var orchestrationErr *Error
	if errors.As(err, &orchestrationErr) {
		return orchestrationErr
	}
	return newError(kind, "", err)
}
