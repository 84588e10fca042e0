package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-voiceloop/core/audio"
)

// Player plays one clip at a time on a playback device created for that
// clip and torn down when Play returns.
type Player struct {
	audioContext *malgo.AllocatedContext

	mu sync.Mutex
}

func newPlayer(audioContext *malgo.AllocatedContext) *Player {
	return &Player{audioContext: audioContext}
}

// Play blocks until the clip has been handed to the device in full, the
// device fails, or ctx is cancelled.
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	if p == nil || p.audioContext == nil {
		return fmt.Errorf("player not initialized")
	}

	// one device at a time
	p.mu.Lock()
	defer p.mu.Unlock()

	clip = audio.ToLinear16(clip)
	format := malgo.FormatS16
	channels := clip.Encoding.Channels
	if channels <= 0 {
		channels = 1
	}
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(clip.Encoding.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = config.SampleRate / 10 // ~100ms of audio
	config.Periods = 4

	buffer := &playbackBuffer{pending: clip.PCM, drained: make(chan struct{})}
	device, err := malgo.InitDevice(p.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: buffer.processAudio(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-buffer.drained:
		return nil
	}
}

type playbackBuffer struct {
	mu      sync.Mutex
	pending []byte

	drainOnce sync.Once
	drained   chan struct{}
}

func (b *playbackBuffer) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		b.mu.Lock()
		defer b.mu.Unlock()

		if len(b.pending) == 0 {
			// the previous period has been consumed by the device
			b.drainOnce.Do(func() { close(b.drained) })
			return
		}

		n := copy(pOutput[:min(need, len(pOutput))], b.pending)
		b.pending = b.pending[n:]
	}
}
