package session

import (
	"fmt"
	"math"
)

// AudioFormat describes a raw PCM stream. Samples are 16-bit signed
// little-endian.
type AudioFormat struct {
	SampleRate    int `yaml:"sample_rate" json:"sample_rate"`
	Channels      int `yaml:"channels" json:"channels"`
	BitsPerSample int `yaml:"bits_per_sample" json:"bits_per_sample"`
}

// BytesPerSecond returns the byte rate of the stream.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BytesForDurationMs returns the byte count for durationMs of audio.
func (f AudioFormat) BytesForDurationMs(durationMs int) int {
	return f.BytesPerSecond() * durationMs / 1000
}

// DurationMs returns the playback duration of n bytes in milliseconds.
func (f AudioFormat) DurationMs(n int) int {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return n * 1000 / bps
}

// MIMEType returns the wire MIME descriptor, e.g. "audio/pcm;rate=16000".
func (f AudioFormat) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// rmsEnergy computes the root-mean-square energy of 16-bit signed
// little-endian PCM, normalized to 0..1.
func rmsEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
