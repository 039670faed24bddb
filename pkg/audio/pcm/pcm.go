package pcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	// L16Mono8K represents audio/L16; rate=8000; channels=1
	L16Mono8K Format = iota
	// L16Mono11K represents audio/L16; rate=11025; channels=1
	L16Mono11K
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K
	// L16Mono22K represents audio/L16; rate=22050; channels=1
	L16Mono22K
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono32K represents audio/L16; rate=32000; channels=1
	L16Mono32K
	// L16Mono44K represents audio/L16; rate=44100; channels=1
	L16Mono44K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K

	numFormats
)

var rates = [numFormats]int{8000, 11025, 16000, 22050, 24000, 32000, 44100, 48000}

// Chunk is a chunk of audio data.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// Format represents a 16-bit little-endian mono PCM configuration.
type Format int

// FormatFor returns the format with the given sample rate.
func FormatFor(rate int) (Format, error) {
	for f, r := range rates {
		if r == rate {
			return Format(f), nil
		}
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", rate)
}

func (f Format) valid() bool {
	return f >= 0 && f < numFormats
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	if !f.valid() {
		panic("pcm: invalid audio type")
	}
	return rates[f]
}

// Channels returns the number of audio channels for this format.
func (f Format) Channels() int {
	if !f.valid() {
		panic("pcm: invalid audio type")
	}
	return 1
}

// Depth returns the bit depth for this format.
func (f Format) Depth() int {
	if !f.valid() {
		panic("pcm: invalid audio type")
	}
	return 16
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.Channels()) * int64(f.Depth()) / 8
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// SilenceChunk returns a silence chunk of the given duration.
func (f Format) SilenceChunk(duration time.Duration) Chunk {
	return &SilenceChunk{
		Duration: duration,
		len:      f.BytesInDuration(duration),
		fmt:      f,
	}
}

// DataChunk returns a chunk of audio data.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{
		Data: data,
		fmt:  f,
	}
}

// FloatChunk encodes normalised samples as a chunk of L16 data.
func (f Format) FloatChunk(samples []float32) Chunk {
	return f.DataChunk(EncodeFloat32(samples))
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	if !f.valid() {
		return fmt.Sprintf("pcm.Format(%d)", int(f))
	}
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", rates[f])
}

// EncodeFloat32 converts samples in [-1, 1] to 16-bit little-endian PCM.
// Values outside the range are clipped.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(FloatToInt16(s)))
	}
	return out
}

// DecodeFloat32 converts 16-bit little-endian PCM to samples in [-1, 1).
// A trailing odd byte is ignored.
func DecodeFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return out
}

// FloatToInt16 scales and clips a normalised sample.
func FloatToInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// DataChunk is a chunk of audio data.
type DataChunk struct {
	Data []byte
	fmt  Format
}

// Len returns the length of the audio data in bytes.
func (c *DataChunk) Len() int64 {
	return int64(len(c.Data))
}

// Format returns the audio format of this chunk.
func (c *DataChunk) Format() Format {
	return c.fmt
}

// Float32 decodes the chunk to normalised samples.
func (c *DataChunk) Float32() []float32 {
	return DecodeFloat32(c.Data)
}

// WriteTo writes the audio data to the writer.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// SilenceChunk is a chunk of silence.
type SilenceChunk struct {
	Duration time.Duration
	len      int64
	fmt      Format
}

// Len returns the length of the silence in bytes.
func (c *SilenceChunk) Len() int64 {
	return c.len
}

// Format returns the audio format of this chunk.
func (c *SilenceChunk) Format() Format {
	return c.fmt
}

var emptyBytes [32000]byte

// WriteTo writes silence (zero bytes) to the writer.
func (c *SilenceChunk) WriteTo(w io.Writer) (int64, error) {
	tw := c.len
	wn := int64(0)
	for tw > 0 {
		silence := emptyBytes[:min(tw, int64(len(emptyBytes)))]
		tw -= int64(len(silence))
		n, err := w.Write(silence)
		wn += int64(n)
		if err != nil {
			return wn, err
		}
	}
	return wn, nil
}
