package events

import "github.com/koscakluka/ema-voiceloop/core/conversations"

const (
	// KindTurnAppended identifies a turn recorded in the conversation log.
	KindTurnAppended Kind = "conversation.turn_appended"
	// KindErrorRaised identifies a surfaced error.
	KindErrorRaised Kind = "conversation.error_raised"
	// KindStateChanged identifies a state machine transition.
	KindStateChanged Kind = "conversation.state_changed"
)

// TurnAppended carries a newly recorded turn.
type TurnAppended struct {
	Base
	Turn conversations.Turn
}

// NewTurnAppended creates a turn appended event.
func NewTurnAppended(sessionID string, turn conversations.Turn) TurnAppended {
	return TurnAppended{Base: NewBase(KindTurnAppended, sessionID), Turn: turn}
}

// ErrorRaised carries one surfaced error. ErrorKind names the error
// category so UIs can decide how prominently to render it.
type ErrorRaised struct {
	Base
	ErrorKind string
	Message   string
}

// NewErrorRaised creates an error raised event.
func NewErrorRaised(sessionID, errorKind, message string) ErrorRaised {
	return ErrorRaised{Base: NewBase(KindErrorRaised, sessionID), ErrorKind: errorKind, Message: message}
}

// StateChanged carries a state machine transition.
type StateChanged struct {
	Base
	From string
	To   string
}

// NewStateChanged creates a state changed event.
func NewStateChanged(sessionID, from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged, sessionID), From: from, To: to}
}
