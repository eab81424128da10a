package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func s16(t *testing.T, pcm []byte, i int) int16 {
	t.Helper()
	return int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
}

func TestEncodeS16LE_Mono(t *testing.T) {
	pcm := EncodeS16LE([]float32{0, 0.5, -0.5, 1.0, -1.0}, 1)
	if len(pcm) != 10 {
		t.Fatalf("len = %d, want 10", len(pcm))
	}
	if got := s16(t, pcm, 0); got != 0 {
		t.Errorf("sample 0 = %d, want 0", got)
	}
	if got := s16(t, pcm, 1); got != 16383 {
		t.Errorf("sample 1 = %d, want 16383", got)
	}
	if got := s16(t, pcm, 3); got != 32767 {
		t.Errorf("sample 3 = %d, want 32767", got)
	}
	if got := s16(t, pcm, 4); got != -32767 {
		t.Errorf("sample 4 = %d, want -32767", got)
	}
}

func TestEncodeS16LE_ClampsOutOfRange(t *testing.T) {
	pcm := EncodeS16LE([]float32{2.5, -3.0}, 1)
	if got := s16(t, pcm, 0); got != 32767 {
		t.Errorf("over-range sample = %d, want clamped 32767", got)
	}
	if got := s16(t, pcm, 1); got != -32767 {
		t.Errorf("under-range sample = %d, want clamped -32767", got)
	}
}

func TestEncodeS16LE_StereoDownmix(t *testing.T) {
	// L=1.0, R=0.0 per frame averages to 0.5.
	pcm := EncodeS16LE([]float32{1.0, 0.0, 1.0, 0.0}, 2)
	if len(pcm) != 4 {
		t.Fatalf("len = %d, want 4 (2 mono samples)", len(pcm))
	}
	if got := s16(t, pcm, 0); got != 16383 {
		t.Errorf("downmixed sample = %d, want 16383", got)
	}
}

func TestStereoToMono_Averages(t *testing.T) {
	in := make([]byte, 4)
	binary.LittleEndian.PutUint16(in[0:2], uint16(int16(1000)))
	binary.LittleEndian.PutUint16(in[2:4], uint16(int16(3000)))

	out := StereoToMono(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if got := s16(t, out, 0); got != 2000 {
		t.Errorf("mono sample = %d, want 2000", got)
	}
}

func TestNormalise_Float32Input(t *testing.T) {
	var n Normaliser
	out := n.Normalise(Frame{
		Float32:    []float32{0.25, 0.25},
		SampleRate: 44100,
		Channels:   1,
		Timestamp:  time.Second,
	})
	if out.Channels != 1 {
		t.Errorf("channels = %d, want 1", out.Channels)
	}
	if out.SampleRate != 44100 {
		t.Errorf("sampleRate = %d, want 44100", out.SampleRate)
	}
	if len(out.Data) != 4 {
		t.Errorf("data len = %d, want 4", len(out.Data))
	}
	if out.Timestamp != time.Second {
		t.Errorf("timestamp = %v, want 1s", out.Timestamp)
	}
}

func TestNormalise_OddByteCountDropped(t *testing.T) {
	var n Normaliser
	out := n.Normalise(Frame{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 1})
	if len(out.Data) != 0 {
		t.Errorf("corrupt frame kept %d bytes, want 0", len(out.Data))
	}
}

func TestNormalise_Int16MonoPassthrough(t *testing.T) {
	var n Normaliser
	in := []byte{0x10, 0x20, 0x30, 0x40}
	out := n.Normalise(Frame{Data: in, SampleRate: 16000, Channels: 1})
	if &out.Data[0] != &in[0] {
		t.Error("mono int16 frame should pass through without copying")
	}
}

func TestResampleMono16_HalvesRate(t *testing.T) {
	in := make([]byte, 8) // 4 samples
	for i, v := range []int16{100, 200, 300, 400} {
		binary.LittleEndian.PutUint16(in[i*2:i*2+2], uint16(v))
	}
	out := ResampleMono16(in, 32000, 16000)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4 (2 samples)", len(out))
	}
	if got := s16(t, out, 0); got != 100 {
		t.Errorf("sample 0 = %d, want 100", got)
	}
}

func TestResampleMono16_SameRateUnchanged(t *testing.T) {
	in := []byte{1, 0, 2, 0}
	out := ResampleMono16(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return input unchanged")
	}
}
