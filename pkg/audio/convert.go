package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// Normaliser converts capture frames to 16-bit little-endian mono PCM at the
// device's native sample rate, the encoding the transcription channel expects.
// It logs a warning on the first corrupt frame and drops it. Create one per
// capture session; not designed for shared use across goroutines.
type Normaliser struct {
	warnedCorrupt sync.Once
}

// Normalise converts frame to 16-bit mono PCM. Float32 samples are encoded
// and clamped; int16 stereo is down-mixed. Frames that already match the
// target encoding are returned unchanged (zero allocation). A frame with an
// odd byte count is considered corrupt and returned with empty data.
func (n *Normaliser) Normalise(frame Frame) Frame {
	if frame.Float32 != nil {
		pcm := EncodeS16LE(frame.Float32, frame.Channels)
		return Frame{
			Data:       pcm,
			SampleRate: frame.SampleRate,
			Channels:   1,
			Timestamp:  frame.Timestamp,
		}
	}

	if len(frame.Data)%2 != 0 {
		n.warnedCorrupt.Do(func() {
			slog.Warn("audio: odd byte count in PCM data, dropping frame",
				"bytes", len(frame.Data),
				"sampleRate", frame.SampleRate,
				"channels", frame.Channels,
			)
		})
		return Frame{SampleRate: frame.SampleRate, Channels: 1, Timestamp: frame.Timestamp}
	}

	pcm := frame.Data
	if frame.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	return Frame{
		Data:       pcm,
		SampleRate: frame.SampleRate,
		Channels:   1,
		Timestamp:  frame.Timestamp,
	}
}

// EncodeS16LE converts float32 samples in [-1, 1] to 16-bit little-endian
// mono PCM. Multi-channel input is down-mixed by averaging the channels of
// each sample frame. Out-of-range samples are clamped rather than wrapped.
func EncodeS16LE(samples []float32, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([]byte, frames*2)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		v := sum / float32(channels)

		// Clamp before scaling to avoid int16 wraparound.
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		s := int16(v * 32767)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(binary.LittleEndian.Uint16(pcm[i*4 : i*4+2])))
		r := int32(int16(binary.LittleEndian.Uint16(pcm[i*4+2 : i*4+4])))
		avg := (l + r) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(avg)))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged. The capture pipeline
// streams at the device's native rate, so this is only needed when a
// transcription backend demands a fixed rate.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*2 : srcIdx*2+2]))
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*2 : (srcIdx+1)*2+2]))
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(interpolated))
	}
	return out
}
