package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotWAV         = errors.New("payload is not a RIFF/WAVE file")
	ErrUnsupportedWAV = errors.New("unsupported WAVE encoding")
	ErrEmptyClip      = errors.New("clip has no audio data")
)

const (
	wavFormatPCM        = 1
	wavFormatALaw       = 6
	wavFormatMulaw      = 7
	wavFormatExtensible = 0xFFFE

	riffHeaderSize  = 12
	chunkHeaderSize = 8
	// streamed WAVs written before their length is known carry this size
	unknownChunkSize = 0xFFFFFFFF
)

// Clip is one decoded audio payload ready to be handed to a player.
type Clip struct {
	Encoding EncodingInfo
	PCM      []byte
}

func (c Clip) Frames() int {
	frameSize := c.Encoding.BytesPerFrame()
	if frameSize <= 0 {
		return 0
	}
	return len(c.PCM) / frameSize
}

func (c Clip) Duration() time.Duration {
	if c.Encoding.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.Encoding.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE payload and returns its sample data without
// copying. Only 16 bit PCM, A-law and mu-law are accepted.
func DecodeWAV(payload []byte) (Clip, error) {
	if len(payload) < riffHeaderSize ||
		string(payload[0:4]) != "RIFF" ||
		string(payload[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var (
		encoding  EncodingInfo
		sawFormat bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(payload) {
		id := string(payload[offset : offset+4])
		size := binary.LittleEndian.Uint32(payload[offset+4 : offset+8])
		body := offset + chunkHeaderSize

		end := len(payload)
		if size != unknownChunkSize && body+int(size) <= len(payload) {
			end = body + int(size)
		}

		switch id {
		case "fmt ":
			parsed, err := parseFormatChunk(payload[body:end])
			if err != nil {
				return Clip{}, err
			}
			encoding = parsed
			sawFormat = true

		case "data":
			if !sawFormat {
				return Clip{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			pcm := payload[body:end]
			if frameSize := encoding.BytesPerFrame(); frameSize > 0 {
				pcm = pcm[:len(pcm)-len(pcm)%frameSize]
			}
			if len(pcm) == 0 {
				return Clip{}, ErrEmptyClip
			}
			return Clip{Encoding: encoding, PCM: pcm}, nil
		}

		// chunks are word aligned
		offset = end + (end-body)%2
	}

	return Clip{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}

func parseFormatChunk(chunk []byte) (EncodingInfo, error) {
	if len(chunk) < 16 {
		return EncodingInfo{}, fmt.Errorf("%w: fmt chunk too short", ErrNotWAV)
	}

	formatTag := binary.LittleEndian.Uint16(chunk[0:2])
	channels := int(binary.LittleEndian.Uint16(chunk[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(chunk[4:8]))
	bitsPerSample := int(binary.LittleEndian.Uint16(chunk[14:16]))

	if formatTag == wavFormatExtensible && len(chunk) >= 26 {
		// the sub-format GUID starts with the ordinary format tag
		formatTag = binary.LittleEndian.Uint16(chunk[24:26])
	}

	if channels <= 0 || sampleRate <= 0 {
		return EncodingInfo{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, channels, sampleRate)
	}

	encoding := EncodingInfo{SampleRate: sampleRate, Channels: channels}
	switch {
	case formatTag == wavFormatPCM && bitsPerSample == 16:
		encoding.Format = EncodingLinear16
	case formatTag == wavFormatALaw && bitsPerSample == 8:
		encoding.Format = EncodingALaw
	case formatTag == wavFormatMulaw && bitsPerSample == 8:
		encoding.Format = EncodingMulaw
	default:
		return EncodingInfo{}, fmt.Errorf("%w: format tag %d with %d bits per sample", ErrUnsupportedWAV, formatTag, bitsPerSample)
	}

	return encoding, nil
}

// EncodeWAV wraps PCM samples in a minimal RIFF/WAVE container.
func EncodeWAV(clip Clip) []byte {
	var formatTag uint16
	bitsPerSample := uint16(clip.Encoding.Format.ByteSize() * 8)
	switch clip.Encoding.Format {
	case EncodingALaw:
		formatTag = wavFormatALaw
	case EncodingMulaw:
		formatTag = wavFormatMulaw
	default:
		formatTag = wavFormatPCM
		bitsPerSample = 16
	}

	channels := clip.Encoding.Channels
	if channels <= 0 {
		channels = 1
	}
	blockAlign := uint16(channels) * bitsPerSample / 8
	byteRate := uint32(clip.Encoding.SampleRate) * uint32(blockAlign)

	out := make([]byte, 0, 44+len(clip.PCM))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(clip.PCM)))
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, formatTag)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(clip.Encoding.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, byteRate)
	out = binary.LittleEndian.AppendUint16(out, blockAlign)
	out = binary.LittleEndian.AppendUint16(out, bitsPerSample)
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(clip.PCM)))
	out = append(out, clip.PCM...)
	return out
}
