package orchestration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-voiceloop/core/dialogue"
)

// Orchestrator runs the turn-taking loop of one voice conversation: it
// listens, waits for the user to go quiet, sends the utterance, plays the
// reply and starts listening again until told to stop.
//
// All conversation state is owned by a single runtime goroutine started by
// Orchestrate. Every public method may be called from any goroutine,
// including from inside the UI callbacks.
type Orchestrator struct {
	channel  dialogue.Channel
	capture  *speechCapture
	playback *playbackController

	quietWindow        time.Duration
	model              string
	locale             string
	maxCaptureRestarts int
	logger             *slog.Logger

	queue        *queue[runtimeEvent]
	dispatcher   *eventDispatcher
	conversation *conversationLog

	// mirrors of runtime state for readers on other goroutines
	state     atomic.Int32
	listening atomic.Bool

	errorsMu sync.Mutex
	errs     []*Error

	baseContext     context.Context
	unsubscribe     func()
	orchestrateOnce sync.Once
	running         atomic.Bool
	closed          atomic.Bool
	closeOnce       sync.Once
	done            chan struct{}

	// session is only touched by the runtime goroutine
	session runtimeSession
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		quietWindow:        defaultQuietWindow,
		locale:             "en-US",
		maxCaptureRestarts: defaultMaxCaptureRestarts,
		logger:             logger,
		queue:              newQueue[runtimeEvent](),
		conversation:       newConversationLog(),
		baseContext:        context.Background(),
		done:               make(chan struct{}),
	}
	o.capture = newSpeechCapture(nil, o.logger)
	o.playback = newPlaybackController(nil)

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Orchestrate starts the runtime goroutine and subscribes to the dialogue
// channel. Cancelling ctx closes the orchestrator.
//
// Contract: call Orchestrate at most once per orchestrator instance.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if o.channel == nil {
		return errors.New("dialogue channel not configured")
	}

	started := false
	o.orchestrateOnce.Do(func() {
		started = true

		options := OrchestrateOptions{}
		for _, opt := range opts {
			opt(&options)
		}

		o.baseContext = ctx
		o.dispatcher = newEventDispatcher(newCallbackEventEmitter(options))
		o.unsubscribe = o.channel.Subscribe(dialogue.Callbacks{
			OnResponse:     func(response dialogue.Response) { o.post(dialogueResponded{response: response}) },
			OnServiceError: func(message string) { o.post(dialogueServiceError{message: message}) },
			OnConnected:    func() { o.post(dialogueConnectionChanged{connected: true}) },
			OnDisconnected: func() { o.post(dialogueConnectionChanged{connected: false}) },
		})

		o.running.Store(true)
		go o.run()
		go func() {
			select {
			case <-ctx.Done():
				o.Close()
			case <-o.done:
			}
		}()
	})
	if !started {
		return errors.New("orchestrator already running")
	}

	return nil
}

// Close stops whatever is in flight and shuts the runtime down. Queued UI
// events are still delivered afterwards.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		if !o.running.Load() {
			o.state.Store(int32(StateClosed))
			o.queue.close()
			return
		}

		o.queue.push(closeCommand{})
		<-o.done
	})
}

// Start begins a new session with prompt as the system prompt. It clears
// the previous session's log.
func (o *Orchestrator) Start(prompt string) error {
	return o.command(func(reply chan<- error) runtimeEvent {
		return startCommand{prompt: prompt, reply: reply}
	})
}

// Stop cancels whatever is outstanding and returns to Idle. It keeps the
// conversation log and is safe to call in any state, any number of times.
func (o *Orchestrator) Stop() {
	_ = o.command(func(reply chan<- error) runtimeEvent {
		return stopCommand{reply: reply}
	})
}

// SendText sends typed input as the user's utterance.
func (o *Orchestrator) SendText(text string) error {
	return o.command(func(reply chan<- error) runtimeEvent {
		return sendTextCommand{text: text, reply: reply}
	})
}

func (o *Orchestrator) State() State { return State(o.state.Load()) }

// ListeningIntent reports whether the session keeps cycling back to
// capture after each reply.
func (o *Orchestrator) ListeningIntent() bool { return o.listening.Load() }

// Conversation returns a copy of the current session's log.
func (o *Orchestrator) Conversation() Conversation { return o.conversation.Snapshot() }

// Errors returns every error surfaced so far, oldest first.
func (o *Orchestrator) Errors() []*Error {
	o.errorsMu.Lock()
	defer o.errorsMu.Unlock()

	errs := make([]*Error, len(o.errs))
	copy(errs, o.errs)
	return errs
}

// LastError returns the most recently surfaced error, if any.
func (o *Orchestrator) LastError() *Error {
	o.errorsMu.Lock()
	defer o.errorsMu.Unlock()

	if len(o.errs) == 0 {
		return nil
	}
	return o.errs[len(o.errs)-1]
}

// Done is closed once the runtime goroutine has exited.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) command(build func(reply chan<- error) runtimeEvent) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.running.Load() {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	if !o.queue.push(build(reply)) {
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-o.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (o *Orchestrator) post(event runtimeEvent) {
	if !o.queue.push(event) {
		o.logger.Debug("dropping event after close", "event", eventName(event))
	}
}
