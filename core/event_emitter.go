package orchestration

import (
	"github.com/koscakluka/ema-voiceloop/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.TurnAppended:
			if opts.onTurnAppended != nil {
				opts.onTurnAppended(typedEvent.Turn)
			}
		case events.ErrorRaised:
			if opts.onErrorRaised != nil {
				opts.onErrorRaised(ErrorKind(typedEvent.ErrorKind), typedEvent.Message)
			}
		case events.StateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(parseState(typedEvent.From), parseState(typedEvent.To))
			}
		case events.UserTranscriptUpdated:
			if opts.onTranscript != nil {
				opts.onTranscript(typedEvent.Transcript)
			}
		case events.DialogueConnectionChanged:
			if opts.onConnectionChanged != nil {
				opts.onConnectionChanged(typedEvent.Connected)
			}
		case events.AssistantPlaybackStarted:
			if opts.onPlaybackStarted != nil {
				opts.onPlaybackStarted(typedEvent.TurnID)
			}
		case events.AssistantPlaybackEnded:
			if opts.onPlaybackEnded != nil {
				opts.onPlaybackEnded(typedEvent.TurnID, typedEvent.Completed)
			}
		}

		if opts.eventHandler != nil {
			opts.eventHandler(event)
		}
	}
}

// eventDispatcher runs UI callbacks on their own goroutine, in emit order,
// so a callback may call back into the orchestrator.
type eventDispatcher struct {
	queue *queue[events.Event]
	emit  eventEmitter
	done  chan struct{}
}

func newEventDispatcher(emit eventEmitter) *eventDispatcher {
	if emit == nil {
		emit = noopEventEmitter
	}
	dispatcher := &eventDispatcher{queue: newQueue[events.Event](), emit: emit, done: make(chan struct{})}
	go dispatcher.run()
	return dispatcher
}

func (d *eventDispatcher) Emit(event events.Event) { d.queue.push(event) }

// Close stops accepting events. What is already queued is still delivered;
// Done is closed after the last one.
func (d *eventDispatcher) Close() { d.queue.close() }

func (d *eventDispatcher) Done() <-chan struct{} { return d.done }

func (d *eventDispatcher) run() {
	defer close(d.done)
	for {
		item, ok := d.queue.pop()
		if !ok {
			return
		}
		d.deliver(item.value)
	}
}

func (d *eventDispatcher) deliver(event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event callback panicked", "event", event.Kind(), "panic", recovered)
		}
	}()
	d.emit(event)
}
