package conversations

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystemPrompt Role = "system-prompt"
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSystemPrompt, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one recorded exchange. Turns are immutable once appended to a
// conversation log.
type Turn struct {
	ID         string
	Role       Role
	Text       string
	Audio      []byte
	RecordedAt time.Time
}

func NewTurn(role Role, text string, audio []byte) Turn {
	return Turn{
		ID:         uuid.NewString(),
		Role:       role,
		Text:       text,
		Audio:      audio,
		RecordedAt: time.Now(),
	}
}

func (t Turn) HasAudio() bool { return len(t.Audio) > 0 }
