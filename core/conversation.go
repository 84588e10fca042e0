package orchestration

import (
	"sync"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-voiceloop/core/conversations"
)

var _ conversations.ActiveContextV0 = (*conversationLog)(nil)
var _ conversations.ActiveContextV0 = Conversation{}

// conversationLog is written only by the runtime goroutine; readers get
// deep copies.
type conversationLog struct {
	mu sync.RWMutex

	sessionID string
	turns     []conversations.Turn
}

func newConversationLog() *conversationLog {
	return &conversationLog{}
}

func (l *conversationLog) reset(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sessionID = sessionID
	l.turns = nil
}

func (l *conversationLog) append(turn conversations.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = append(l.turns, turn)
}

func (l *conversationLog) History() []conversations.Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := []conversations.Turn{}
	if len(l.turns) == 0 {
		return history
	}
	if err := copier.CopyWithOption(&history, &l.turns, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy conversation history", "error", err)
	}
	return history
}

func (l *conversationLog) SessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionID
}

func (l *conversationLog) Snapshot() Conversation {
	return Conversation{sessionID: l.SessionID(), turns: l.History()}
}

// Conversation is a point-in-time copy of the conversation log.
type Conversation struct {
	sessionID string
	turns     []conversations.Turn
}

func (c Conversation) SessionID() string              { return c.sessionID }
func (c Conversation) History() []conversations.Turn { return c.turns }
