package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-voiceloop/core/audio"
	"github.com/koscakluka/ema-voiceloop/core/conversations"
	"github.com/koscakluka/ema-voiceloop/core/dialogue"
	"github.com/koscakluka/ema-voiceloop/core/events"
	"github.com/koscakluka/ema-voiceloop/core/speechcapture"
)

const testQuietWindow = 100 * time.Millisecond

type fakeCaptureProvider struct {
	mu       sync.Mutex
	starts   int
	stops    int
	live     bool
	options  speechcapture.CaptureOptions
	startErr error
}

func (p *fakeCaptureProvider) StartCapture(_ context.Context, opts ...speechcapture.CaptureOption) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.starts++
	if p.startErr != nil {
		return p.startErr
	}
	p.options = speechcapture.NewCaptureOptions(opts...)
	p.live = true
	return nil
}

func (p *fakeCaptureProvider) StopCapture() error {
	p.mu.Lock()
	wasLive := p.live
	p.live = false
	p.stops++
	options := p.options
	p.mu.Unlock()

	if wasLive {
		go options.EndedCallback()
	}
	return nil
}

func (p *fakeCaptureProvider) current() speechcapture.CaptureOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options
}

func (p *fakeCaptureProvider) partial(transcript string) { p.current().PartialCallback(transcript) }
func (p *fakeCaptureProvider) fail(err error)            { p.current().ErrorCallback(err) }

// end simulates the recognizer giving up on its own.
func (p *fakeCaptureProvider) end() {
	p.mu.Lock()
	p.live = false
	options := p.options
	p.mu.Unlock()
	options.EndedCallback()
}

func (p *fakeCaptureProvider) startCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

func (p *fakeCaptureProvider) isLive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

type fakePlayer struct {
	mu    sync.Mutex
	clips []audio.Clip
	err   error
	hold  bool

	release chan struct{}
	active  atomic.Int32
}

func newFakePlayer() *fakePlayer { return &fakePlayer{release: make(chan struct{})} }

func (p *fakePlayer) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	p.clips = append(p.clips, clip)
	err, hold := p.err, p.hold
	p.mu.Unlock()

	p.active.Add(1)
	defer p.active.Add(-1)

	if err != nil {
		return err
	}
	if !hold {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

func (p *fakePlayer) setHold(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = hold
}

func (p *fakePlayer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePlayer) finish(t *testing.T) {
	t.Helper()
	select {
	case p.release <- struct{}{}:
	case <-time.After(time.Second):
		t.Fatalf("no playback to finish")
	}
}

func (p *fakePlayer) played() []audio.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audio.Clip(nil), p.clips...)
}

type fakeChannel struct {
	dialogue.Subscribers

	mu      sync.Mutex
	sent    []dialogue.Message
	sendErr error
}

func newFakeChannel() *fakeChannel {
	channel := &fakeChannel{}
	channel.Connected()
	return channel
}

func (c *fakeChannel) Send(_ context.Context, message dialogue.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, message)
	return c.sendErr
}

func (c *fakeChannel) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeChannel) messages() []dialogue.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dialogue.Message(nil), c.sent...)
}

func (c *fakeChannel) last() dialogue.Message {
	messages := c.messages()
	if len(messages) == 0 {
		return dialogue.Message{}
	}
	return messages[len(messages)-1]
}

func (c *fakeChannel) respond(text string, audio []byte) {
	c.respondTo(c.last().ID, text, audio)
}

func (c *fakeChannel) respondTo(messageID, text string, audio []byte) {
	c.Frame(dialogue.InboundFrame{Type: dialogue.FrameTypeResponse, Text: text, Audio: audio, ReplyTo: messageID})
}

func (c *fakeChannel) serviceError(message string) {
	c.Frame(dialogue.InboundFrame{Type: dialogue.FrameTypeError, Message: message})
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *eventRecorder) turns() []conversations.Turn {
	var turns []conversations.Turn
	for _, event := range r.snapshot() {
		if appended, ok := event.(events.TurnAppended); ok {
			turns = append(turns, appended.Turn)
		}
	}
	return turns
}

func (r *eventRecorder) errorsRaised() []events.ErrorRaised {
	var raised []events.ErrorRaised
	for _, event := range r.snapshot() {
		if errorRaised, ok := event.(events.ErrorRaised); ok {
			raised = append(raised, errorRaised)
		}
	}
	return raised
}

func (r *eventRecorder) count(kind events.Kind) int {
	n := 0
	for _, event := range r.snapshot() {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}

type testRig struct {
	o        *Orchestrator
	channel  *fakeChannel
	capture  *fakeCaptureProvider
	player   *fakePlayer
	recorder *eventRecorder
}

func newTestRig(t *testing.T, opts ...OrchestratorOption) *testRig {
	t.Helper()

	rig := &testRig{
		channel:  newFakeChannel(),
		capture:  &fakeCaptureProvider{},
		player:   newFakePlayer(),
		recorder: &eventRecorder{},
	}
	rig.o = NewOrchestrator(append([]OrchestratorOption{
		WithDialogueChannel(rig.channel),
		WithSpeechCapture(rig.capture),
		WithAudioPlayer(rig.player),
		WithQuietWindow(testQuietWindow),
		WithModel("gpt-3.5-turbo"),
	}, opts...)...)

	if err := rig.o.Orchestrate(context.Background(), WithEventHandler(rig.recorder.handle)); err != nil {
		t.Fatalf("expected orchestrate to succeed, got %v", err)
	}
	t.Cleanup(rig.o.Close)

	return rig
}

func (r *testRig) waitForState(t *testing.T, state State) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "state "+state.String(), func() bool {
		return r.o.State() == state
	})
}

func (r *testRig) waitForSent(t *testing.T, n int) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "sent messages", func() bool {
		return len(r.channel.messages()) >= n
	})
}

func (r *testRig) waitForErrors(t *testing.T, n int) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "raised errors", func() bool {
		return len(r.recorder.errorsRaised()) >= n
	})
}

// toAwaitingResponse starts a session and waits for the system prompt to go
// out.
func (r *testRig) toAwaitingResponse(t *testing.T) {
	t.Helper()
	if err := r.o.Start("You are a helpful assistant"); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	r.waitForSent(t, 1)
	r.waitForState(t, StateAwaitingResponse)
}

func (r *testRig) toCapturing(t *testing.T) {
	t.Helper()
	r.toAwaitingResponse(t)
	r.channel.respond("Hi, how can I help?", nil)
	r.waitForState(t, StateCapturing)
}

func (r *testRig) toDebouncing(t *testing.T) {
	t.Helper()
	r.o.quietWindow = time.Hour
	r.toCapturing(t)
	r.capture.partial("what is")
	r.waitForState(t, StateDebouncing)
}

func (r *testRig) toPlayingAudio(t *testing.T) {
	t.Helper()
	r.player.setHold(true)
	r.toAwaitingResponse(t)
	r.channel.respond("Hi, how can I help?", wavPayload())
	r.waitForState(t, StatePlayingAudio)
	waitForCondition(t, time.Second, "player to start", func() bool { return r.player.active.Load() == 1 })
}

func wavPayload() []byte {
	return audio.EncodeWAV(audio.Clip{Encoding: audio.GetDefaultEncodingInfo(), PCM: []byte{1, 0, 2, 0, 3, 0}})
}

// transitions lists the target of every state change, oldest first.
func (r *eventRecorder) transitions() []string {
	var to []string
	for _, event := range r.snapshot() {
		if changed, ok := event.(events.StateChanged); ok {
			to = append(to, changed.To)
		}
	}
	return to
}
