package orchestration

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrorKindEmptyPrompt is a rejected blank prompt or text input; the UI
	// should re-prompt.
	ErrorKindEmptyPrompt ErrorKind = "empty-prompt"
	// ErrorKindCapture is a speech capture failure; the session is forced
	// to Idle.
	ErrorKindCapture ErrorKind = "capture"
	// ErrorKindPlayback is a lost audio reply; the text reply is already
	// recorded.
	ErrorKindPlayback ErrorKind = "playback"
	// ErrorKindService is a remote dialogue failure, surfaced verbatim and
	// never retried.
	ErrorKindService ErrorKind = "service"

	ErrorKindPlaybackBusy     ErrorKind = "playback-busy"
	ErrorKindDuplicateCapture ErrorKind = "duplicate-capture-start"
	ErrorKindSessionActive    ErrorKind = "session-active"
	ErrorKindTurnInProgress   ErrorKind = "turn-in-progress"
	ErrorKindNoSession        ErrorKind = "no-session"
)

var (
	ErrEmptyPrompt           = errors.New("prompt is empty")
	ErrPlaybackBusy          = errors.New("playback already in progress")
	ErrPlaybackStopped       = errors.New("playback stopped")
	ErrDuplicateCaptureStart = errors.New("speech capture already running")
	ErrSessionActive         = errors.New("conversation session already active")
	ErrTurnInProgress        = errors.New("a turn is already in progress")
	ErrNoSession             = errors.New("no conversation session started")
	ErrNotRunning            = errors.New("orchestrator is not running")
	ErrClosed                = errors.New("orchestrator closed")
)

// Error is what the orchestrator surfaces to its UI collaborator. Raw
// subsystem errors only ever appear wrapped in Err.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an orchestrator Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var orchestrationErr *Error
	return errors.As(err, &orchestrationErr) && orchestrationErr.Kind == kind
}
