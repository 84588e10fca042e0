package orchestration

type State int32

const (
	StateIdle State = iota
	// StateAwaitingResponse covers both the system prompt and user
	// utterances; at most one message is outstanding.
	StateAwaitingResponse
	StatePlayingAudio
	StateCapturing
	StateDebouncing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StatePlayingAudio:
		return "playing-audio"
	case StateCapturing:
		return "capturing"
	case StateDebouncing:
		return "debouncing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) isCapturing() bool { return s == StateCapturing || s == StateDebouncing }

func parseState(name string) State {
	for state := StateIdle; state <= StateClosed; state++ {
		if state.String() == name {
			return state
		}
	}
	return StateIdle
}
