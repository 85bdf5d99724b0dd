package live

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const bytesPerSample = 2

// FloatToPCM16 converts [-1, 1] float samples to little-endian signed 16-bit
// PCM. Out-of-range samples are clamped and NaN is silence.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if math.IsNaN(float64(s)) {
			s = 0
		} else if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(v))
	}
	return out
}

// PCM16ToFloat converts little-endian signed 16-bit PCM to float samples.
func PCM16ToFloat(pcm []byte) ([]float32, error) {
	if len(pcm)%bytesPerSample != 0 {
		return nil, fmt.Errorf("PCM data size %d not aligned to sample size %d", len(pcm), bytesPerSample)
	}
	out := make([]float32, len(pcm)/bytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// DecodeFloat32LE reads raw little-endian float32 samples as sent by browser
// capture nodes.
func DecodeFloat32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("float32 frame size %d not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

func EncodeFrame(samples []float32) string {
	return base64.StdEncoding.EncodeToString(FloatToPCM16(samples))
}

func DecodePayload(payload string) ([]byte, []float32, error) {
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	samples, err := PCM16ToFloat(pcm)
	if err != nil {
		return nil, nil, err
	}
	return pcm, samples, nil
}

func SampleDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Framer slices a continuous sample stream into fixed-size frames.
type Framer struct {
	size int
	buf  []float32
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultFrameSize
	}
	return &Framer{size: size, buf: make([]float32, 0, size)}
}

// Push appends samples and returns every complete frame, in order.
func (f *Framer) Push(samples []float32) [][]float32 {
	var frames [][]float32
	for len(samples) > 0 {
		n := f.size - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		if len(f.buf) == f.size {
			frames = append(frames, f.buf)
			f.buf = make([]float32, 0, f.size)
		}
	}
	return frames
}

func (f *Framer) Pending() int {
	return len(f.buf)
}
