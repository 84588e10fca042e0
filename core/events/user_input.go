package events

// KindUserTranscriptUpdated identifies mutable utterance snapshots.
const KindUserTranscriptUpdated Kind = "user_input.transcript_updated"

// UserTranscriptUpdated carries the utterance captured so far.
type UserTranscriptUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptUpdated creates a user transcript updated event.
func NewUserTranscriptUpdated(sessionID, transcript string) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated, sessionID), Transcript: transcript}
}
