package orchestration

import (
	"sync"
	"time"
)

const defaultQuietWindow = 750 * time.Millisecond

// silenceDebouncer decides when the user has finished speaking: a candidate
// is finalized once no partial transcript arrived for a full quiet window.
type silenceDebouncer struct {
	window      time.Duration
	onFinalized func(generation uint64, text string)

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	candidate  string
	pending    bool
}

// onFinalized receives the generation of the partial that armed the timer,
// so a finalize queued behind a newer partial can be told apart.
func newSilenceDebouncer(window time.Duration, onFinalized func(generation uint64, text string)) *silenceDebouncer {
	if window <= 0 {
		window = defaultQuietWindow
	}
	if onFinalized == nil {
		onFinalized = func(uint64, string) {}
	}
	return &silenceDebouncer{window: window, onFinalized: onFinalized}
}

// OnPartialTranscript stores text as the candidate and restarts the quiet
// window. Empty updates count as speech too.
func (d *silenceDebouncer) OnPartialTranscript(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimerLocked()
	d.generation++
	d.candidate = text
	d.pending = true

	generation := d.generation
	d.timer = time.AfterFunc(d.window, func() { d.fire(generation) })
}

// Cancel drops the candidate without emitting.
func (d *silenceDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimerLocked()
	d.generation++
	d.candidate = ""
	d.pending = false
}

// Generation identifies the latest partial or cancel.
func (d *silenceDebouncer) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

func (d *silenceDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *silenceDebouncer) fire(generation uint64) {
	d.mu.Lock()
	// a timer that lost the race with a newer partial or a cancel
	if generation != d.generation || !d.pending {
		d.mu.Unlock()
		return
	}
	text := d.candidate
	d.candidate = ""
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.onFinalized(generation, text)
}

func (d *silenceDebouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
