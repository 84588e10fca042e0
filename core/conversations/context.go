package conversations

// ActiveContextV0 exposes the running conversation to UI collaborators.
type ActiveContextV0 interface {
	// Recorded turns only. Ordering: oldest -> newest.
	History() []Turn

	// SessionID identifies the conversation started by the latest Start;
	// empty before the first Start.
	SessionID() string
}
