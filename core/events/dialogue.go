package events

// KindDialogueConnectionChanged identifies dialogue channel connectivity changes.
const KindDialogueConnectionChanged Kind = "dialogue.connection_changed"

// DialogueConnectionChanged reports whether the dialogue channel is connected.
type DialogueConnectionChanged struct {
	Base
	Connected bool
}

// NewDialogueConnectionChanged creates a dialogue connection changed event.
func NewDialogueConnectionChanged(sessionID string, connected bool) DialogueConnectionChanged {
	return DialogueConnectionChanged{Base: NewBase(KindDialogueConnectionChanged, sessionID), Connected: connected}
}
