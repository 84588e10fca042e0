package orchestration

import (
	"sync"
	"testing"
	"time"
)

type finalizedRecorder struct {
	mu    sync.Mutex
	texts []string
	at    []time.Time
}

func (r *finalizedRecorder) record(_ uint64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	r.at = append(r.at, time.Now())
}

func (r *finalizedRecorder) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...), append([]time.Time(nil), r.at...)
}

func TestDebouncerFinalizesLastCandidateOnceAfterQuietWindow(t *testing.T) {
	const window = 150 * time.Millisecond
	recorder := &finalizedRecorder{}
	debouncer := newSilenceDebouncer(window, recorder.record)

	debouncer.OnPartialTranscript("what")
	time.Sleep(20 * time.Millisecond)
	debouncer.OnPartialTranscript("what is")
	time.Sleep(20 * time.Millisecond)
	debouncer.OnPartialTranscript("what is two plus two")
	lastUpdate := time.Now()

	waitForCondition(t, time.Second, "finalized utterance", func() bool {
		texts, _ := recorder.snapshot()
		return len(texts) > 0
	})
	time.Sleep(2 * window)

	texts, at := recorder.snapshot()
	if len(texts) != 1 || texts[0] != "what is two plus two" {
		t.Fatalf("expected exactly one finalized utterance, got %v", texts)
	}
	if elapsed := at[0].Sub(lastUpdate); elapsed < window {
		t.Fatalf("finalized %v after the last partial, before the %v quiet window", elapsed, window)
	}
	if debouncer.Pending() {
		t.Fatalf("expected no pending candidate after finalize")
	}
}

func TestDebouncerEmptyUpdateStillResetsTimer(t *testing.T) {
	const window = 100 * time.Millisecond
	recorder := &finalizedRecorder{}
	debouncer := newSilenceDebouncer(window, recorder.record)

	debouncer.OnPartialTranscript("hello")
	time.Sleep(40 * time.Millisecond)
	debouncer.OnPartialTranscript("")
	time.Sleep(40 * time.Millisecond)

	if texts, _ := recorder.snapshot(); len(texts) != 0 {
		t.Fatalf("expected empty update to keep the window open, got %v", texts)
	}

	waitForCondition(t, time.Second, "finalized candidate", func() bool {
		texts, _ := recorder.snapshot()
		return len(texts) == 1
	})
	if texts, _ := recorder.snapshot(); texts[0] != "" {
		t.Fatalf("expected the latest (empty) candidate, got %q", texts[0])
	}
}

func TestDebouncerCancelSuppressesFinalize(t *testing.T) {
	const window = 40 * time.Millisecond
	recorder := &finalizedRecorder{}
	debouncer := newSilenceDebouncer(window, recorder.record)

	debouncer.OnPartialTranscript("never mind")
	debouncer.Cancel()
	debouncer.Cancel()

	time.Sleep(3 * window)
	if texts, _ := recorder.snapshot(); len(texts) != 0 {
		t.Fatalf("expected cancelled candidate to be dropped, got %v", texts)
	}
	if debouncer.Pending() {
		t.Fatalf("expected nothing pending after cancel")
	}
}

func TestDebouncerIgnoresStaleTimerFire(t *testing.T) {
	recorder := &finalizedRecorder{}
	debouncer := newSilenceDebouncer(time.Hour, recorder.record)

	debouncer.OnPartialTranscript("first")
	staleGeneration := debouncer.generation
	debouncer.OnPartialTranscript("second")

	debouncer.fire(staleGeneration)
	if texts, _ := recorder.snapshot(); len(texts) != 0 {
		t.Fatalf("expected stale generation to be ignored, got %v", texts)
	}

	debouncer.fire(debouncer.generation)
	debouncer.fire(debouncer.generation)
	if texts, _ := recorder.snapshot(); len(texts) != 1 || texts[0] != "second" {
		t.Fatalf("expected current candidate exactly once, got %v", texts)
	}
	debouncer.Cancel()
}

func TestDebouncerKeepsSeparateUtterancesApart(t *testing.T) {
	const window = 50 * time.Millisecond
	recorder := &finalizedRecorder{}
	debouncer := newSilenceDebouncer(window, recorder.record)

	debouncer.OnPartialTranscript("first")
	waitForCondition(t, time.Second, "first utterance", func() bool {
		texts, _ := recorder.snapshot()
		return len(texts) == 1
	})
	debouncer.OnPartialTranscript("second")
	waitForCondition(t, time.Second, "second utterance", func() bool {
		texts, _ := recorder.snapshot()
		return len(texts) == 2
	})

	if texts, _ := recorder.snapshot(); texts[0] != "first" || texts[1] != "second" {
		t.Fatalf("unexpected utterances %v", texts)
	}
}

func TestDebouncerReportsGenerationOfFinalizedCandidate(t *testing.T) {
	generations := make(chan uint64, 1)
	debouncer := newSilenceDebouncer(time.Hour, func(generation uint64, _ string) { generations <- generation })

	debouncer.OnPartialTranscript("what")
	debouncer.OnPartialTranscript("what is")
	current := debouncer.Generation()
	debouncer.fire(current)

	select {
	case got := <-generations:
		if got != current {
			t.Fatalf("expected generation %d, got %d", current, got)
		}
	default:
		t.Fatalf("expected the candidate to be finalized")
	}

	debouncer.OnPartialTranscript("what is two")
	if debouncer.Generation() == current {
		t.Fatalf("expected a new partial to advance the generation")
	}
	debouncer.Cancel()
}
