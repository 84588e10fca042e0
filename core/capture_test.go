package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type postedEvents struct {
	mu     sync.Mutex
	events []runtimeEvent
}

func (p *postedEvents) post(event runtimeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *postedEvents) snapshot() []runtimeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]runtimeEvent(nil), p.events...)
}

func TestSpeechCaptureStartsProviderAtMostOnceWhileRunning(t *testing.T) {
	provider := &fakeCaptureProvider{}
	capture := newSpeechCapture(provider, logger)
	posted := &postedEvents{}

	id, err := capture.Start(context.Background(), "en-US", posted.post)
	if err != nil {
		t.Fatalf("expected first start to succeed, got %v", err)
	}

	for range 3 {
		duplicateID, err := capture.Start(context.Background(), "en-US", posted.post)
		if !errors.Is(err, ErrDuplicateCaptureStart) {
			t.Fatalf("expected duplicate start error, got %v", err)
		}
		if duplicateID != id {
			t.Fatalf("expected duplicate start to report live capture %d, got %d", id, duplicateID)
		}
	}

	if got := provider.startCount(); got != 1 {
		t.Fatalf("expected provider started once, got %d", got)
	}
	if got := capture.DuplicateStarts(); got != 3 {
		t.Fatalf("expected 3 duplicate starts counted, got %d", got)
	}

	if err := capture.Stop(); err != nil {
		t.Fatalf("expected stop to succeed, got %v", err)
	}
	if err := capture.Stop(); err != nil {
		t.Fatalf("expected second stop to be a no-op, got %v", err)
	}

	nextID, err := capture.Start(context.Background(), "en-US", posted.post)
	if err != nil {
		t.Fatalf("expected start after stop to succeed, got %v", err)
	}
	if nextID == id {
		t.Fatalf("expected a new capture session id")
	}
	if got := provider.startCount(); got != 2 {
		t.Fatalf("expected provider started twice, got %d", got)
	}
}

func TestSpeechCaptureEndedFreesTheSlot(t *testing.T) {
	provider := &fakeCaptureProvider{}
	capture := newSpeechCapture(provider, logger)
	posted := &postedEvents{}

	id, err := capture.Start(context.Background(), "en-US", posted.post)
	if err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	provider.partial("hello")
	provider.end()

	if capture.IsCapturing() {
		t.Fatalf("expected ended capture to clear the running flag")
	}

	events := posted.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected partial and ended events, got %d", len(events))
	}
	if partial, ok := events[0].(capturePartial); !ok || partial.captureID != id || partial.transcript != "hello" {
		t.Fatalf("unexpected first event %#v", events[0])
	}
	if ended, ok := events[1].(captureEnded); !ok || ended.captureID != id {
		t.Fatalf("unexpected second event %#v", events[1])
	}

	if _, err := capture.Start(context.Background(), "en-US", posted.post); err != nil {
		t.Fatalf("expected restart after ended to succeed, got %v", err)
	}
}

func TestSpeechCaptureStaleEndedKeepsNewCaptureRunning(t *testing.T) {
	provider := &fakeCaptureProvider{}
	capture := newSpeechCapture(provider, logger)
	posted := &postedEvents{}

	if _, err := capture.Start(context.Background(), "en-US", posted.post); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	staleOptions := provider.current()
	_ = capture.Stop()

	if _, err := capture.Start(context.Background(), "en-US", posted.post); err != nil {
		t.Fatalf("expected restart to succeed, got %v", err)
	}
	staleOptions.EndedCallback()

	if !capture.IsCapturing() {
		t.Fatalf("expected stale ended callback to leave the new capture running")
	}
}

func TestSpeechCaptureStartFailureClearsFlag(t *testing.T) {
	provider := &fakeCaptureProvider{startErr: errors.New("microphone busy")}
	capture := newSpeechCapture(provider, logger)

	if _, err := capture.Start(context.Background(), "en-US", func(runtimeEvent) {}); err == nil {
		t.Fatalf("expected start failure")
	}
	if capture.IsCapturing() {
		t.Fatalf("expected failed start to leave capture stopped")
	}
}

func TestSpeechCaptureUnconfigured(t *testing.T) {
	capture := newSpeechCapture(nil, logger)

	if capture.IsConfigured() {
		t.Fatalf("expected capture without provider to be unconfigured")
	}
	if _, err := capture.Start(context.Background(), "en-US", func(runtimeEvent) {}); err == nil {
		t.Fatalf("expected start without provider to fail")
	}
	if err := capture.Stop(); err != nil {
		t.Fatalf("expected stop without provider to be a no-op, got %v", err)
	}
}
