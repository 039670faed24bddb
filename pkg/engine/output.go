package engine

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/haivivi/unitsynth/pkg/audio/pcm"
	"github.com/haivivi/unitsynth/pkg/audio/wavfile"
	"github.com/haivivi/unitsynth/pkg/storage"
)

// OutputFormat is the encoding of a rendered waveform.
type OutputFormat string

const (
	OutputWAV OutputFormat = "wav"
	OutputPCM OutputFormat = "pcm"
)

// OutputFormatFor picks the format from a file name: raw L16 for ".pcm",
// WAV otherwise.
func OutputFormatFor(name string) OutputFormat {
	if strings.EqualFold(path.Ext(name), ".pcm") {
		return OutputPCM
	}
	return OutputWAV
}

// Encode returns the waveform in format f.
func (r *Result) Encode(f OutputFormat) ([]byte, error) {
	switch f {
	case OutputWAV:
		return wavfile.EncodeBytes(r.Samples, r.SampleRate)
	case OutputPCM:
		format, err := pcm.FormatFor(r.SampleRate)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := pcm.WriteFloat32(pcm.ChunkWriter(&buf), format, r.Samples); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("engine: unknown output format %q", f)
}

// Save encodes the waveform by the extension of name and writes it to fs.
func (r *Result) Save(ctx context.Context, fs storage.FileStore, name string) error {
	data, err := r.Encode(OutputFormatFor(name))
	if err != nil {
		return err
	}
	return storage.WriteAll(ctx, fs, name, data)
}
