package audio

import "encoding/binary"

// ToLinear16 expands A-law and mu-law clips to 16 bit PCM so they can be
// handed to devices that only accept linear samples. Linear clips are
// returned unchanged.
func ToLinear16(clip Clip) Clip {
	var expand func(byte) int16
	switch clip.Encoding.Format {
	case EncodingALaw:
		expand = alawToLinear
	case EncodingMulaw:
		expand = mulawToLinear
	default:
		return clip
	}

	pcm := make([]byte, 0, len(clip.PCM)*2)
	for _, sample := range clip.PCM {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(expand(sample)))
	}

	encoding := clip.Encoding
	encoding.Format = EncodingLinear16
	return Clip{Encoding: encoding, PCM: pcm}
}

func mulawToLinear(sample byte) int16 {
	sample = ^sample
	sign := sample & 0x80
	exponent := (sample >> 4) & 0x07
	mantissa := sample & 0x0F

	magnitude := ((int16(mantissa) << 3) + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return -magnitude
	}
	return magnitude
}

func alawToLinear(sample byte) int16 {
	sample ^= 0x55
	sign := sample & 0x80
	exponent := (sample >> 4) & 0x07
	mantissa := int16(sample & 0x0F)

	var magnitude int16
	switch exponent {
	case 0:
		magnitude = (mantissa << 4) + 8
	default:
		magnitude = ((mantissa << 4) + 0x108) << (exponent - 1)
	}

	if sign != 0 {
		return magnitude
	}
	return -magnitude
}
