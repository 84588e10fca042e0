package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-voiceloop/core/audio"
)

const playbackStopTimeout = 2 * time.Second

// playbackController plays one reply at a time. Every Play gets a fresh
// handle that is released before Play returns.
type playbackController struct {
	player AudioPlayer

	mu     sync.Mutex
	handle *playbackHandle
}

type playbackHandle struct {
	clip   audio.Clip
	cancel context.CancelFunc

	stopped  bool
	released chan struct{}
}

func newPlaybackController(player AudioPlayer) *playbackController {
	return &playbackController{player: player}
}

func (p *playbackController) IsConfigured() bool { return p != nil && p.player != nil }

func (p *playbackController) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil
}

// Play decodes payload and blocks until it finished playing, failed, or
// was stopped. A stopped playback returns ErrPlaybackStopped.
func (p *playbackController) Play(ctx context.Context, payload []byte) error {
	if !p.IsConfigured() {
		return newError(ErrorKindPlayback, "audio playback not configured", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle, err := p.acquire(cancel)
	if err != nil {
		return err
	}
	defer p.release(handle)

	handle.clip, err = audio.DecodeWAV(payload)
	if err != nil {
		return newError(ErrorKindPlayback, "failed to decode reply audio", err)
	}

	err = p.player.Play(ctx, handle.clip)

	p.mu.Lock()
	stopped := handle.stopped
	p.mu.Unlock()
	switch {
	case stopped:
		return ErrPlaybackStopped
	case err != nil:
		return newError(ErrorKindPlayback, "failed to play reply audio", err)
	}
	return nil
}

// Stop cancels the live playback and waits for its handle to be released.
// It is a no-op when nothing is playing.
func (p *playbackController) Stop() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	handle := p.handle
	if handle != nil {
		handle.stopped = true
		handle.cancel()
	}
	p.mu.Unlock()

	if handle == nil {
		return nil
	}

	select {
	case <-handle.released:
		return nil
	case <-time.After(playbackStopTimeout):
		return fmt.Errorf("audio player did not stop within %s", playbackStopTimeout)
	}
}

func (p *playbackController) acquire(cancel context.CancelFunc) (*playbackHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return nil, newError(ErrorKindPlaybackBusy, "cannot play while a previous reply is still playing", ErrPlaybackBusy)
	}
	p.handle = &playbackHandle{cancel: cancel, released: make(chan struct{})}
	return p.handle, nil
}

func (p *playbackController) release(handle *playbackHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == handle {
		p.handle = nil
	}
	handle.clip = audio.Clip{}
	close(handle.released)
}

func isPlaybackStopped(err error) bool { return errors.Is(err, ErrPlaybackStopped) }
