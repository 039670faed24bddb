// Package wavfile decodes RIFF/WAVE files to normalised mono float32 samples
// and encodes samples back to 16-bit mono WAVE.
package wavfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalid is returned for input that is not a decodable PCM WAVE file.
var ErrInvalid = errors.New("wavfile: invalid wav file")

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Decode reads a whole WAVE file and returns its samples, down-mixed to mono
// and scaled to [-1, 1), together with the sample rate.
func Decode(r io.ReadSeeker) ([]float32, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, 0, ErrInvalid
	}
	if d.WavAudioFormat != formatPCM && d.WavAudioFormat != formatExtensible {
		return nil, 0, fmt.Errorf("%w: unsupported format tag %d", ErrInvalid, d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: missing format", ErrInvalid)
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(d.BitDepth)
	}
	return downmix(buf, depth), buf.Format.SampleRate, nil
}

// DecodeBytes decodes an in-memory WAVE file.
func DecodeBytes(data []byte) ([]float32, int, error) {
	return Decode(bytes.NewReader(data))
}

// ReadFile decodes the WAVE file at path.
func ReadFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return Decode(f)
}

func downmix(buf *audio.IntBuffer, depth int) []float32 {
	ch := buf.Format.NumChannels
	if ch < 1 {
		ch = 1
	}
	// 8-bit WAVE samples are unsigned.
	var offset float32
	if depth == 8 {
		offset = 128
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(buf.Data) / ch
	out := make([]float32, frames)
	for i := range out {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += (float32(buf.Data[i*ch+c]) - offset) / scale
		}
		out[i] = sum / float32(ch)
	}
	return out
}

// Encode writes samples as a 16-bit mono WAVE file.
func Encode(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("wavfile: invalid sample rate %d", sampleRate)
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(toInt16(s))
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: close encoder: %w", err)
	}
	return nil
}

// EncodeBytes encodes samples into an in-memory WAVE file.
func EncodeBytes(samples []float32, sampleRate int) ([]byte, error) {
	var ws writeSeeker
	if err := Encode(&ws, samples, sampleRate); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteFile encodes samples to a WAVE file at path.
func WriteFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func toInt16(s float32) int16 {
	v := s * 32768
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	}
	if v < 0 {
		return int16(v - 0.5)
	}
	return int16(v + 0.5)
}
