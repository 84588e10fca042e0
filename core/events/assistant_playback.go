package events

const (
	// KindAssistantPlaybackStarted identifies playback start for the current reply.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the end of reply playback.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted marks the start of reply playback for TurnID.
type AssistantPlaybackStarted struct {
	Base
	TurnID string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(sessionID, turnID string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted, sessionID), TurnID: turnID}
}

// AssistantPlaybackEnded marks the end of reply playback. Completed is false
// when playback failed or was stopped.
type AssistantPlaybackEnded struct {
	Base
	TurnID    string
	Completed bool
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(sessionID, turnID string, completed bool) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded, sessionID), TurnID: turnID, Completed: completed}
}
