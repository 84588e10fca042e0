package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voiceloop/core/audio"
)

// Player plays clips through the default PortAudio output, opening a
// blocking stream for every clip.
type Player struct {
	framesPerBuffer int

	mu sync.Mutex
}

func NewPlayer(framesPerBuffer int) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &Player{framesPerBuffer: framesPerBuffer}, nil
}

func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clip = audio.ToLinear16(clip)
	channels := clip.Encoding.Channels
	if channels <= 0 {
		channels = 1
	}

	out := make([]int16, p.framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(clip.Encoding.SampleRate), p.framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	defer stream.Stop()

	chunkSize := len(out) * 2
	for offset := 0; offset < len(clip.PCM); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := clip.PCM[offset:min(offset+chunkSize, len(clip.PCM))]
		clear(out)
		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, out[:len(chunk)/2]); err != nil {
			return fmt.Errorf("failed to convert audio chunk: %w", err)
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}

	return nil
}

func (p *Player) Close() error {
	return portaudio.Terminate()
}
