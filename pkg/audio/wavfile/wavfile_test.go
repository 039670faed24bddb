package wavfile

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestEncodeDecode(t *testing.T) {
	in := make([]float32, 1600)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	data, err := EncodeBytes(in, 16000)
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	out, rate, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if d := math.Abs(float64(out[i] - in[i])); d > 1.0/32768 {
			t.Fatalf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecode_Stereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	if err := writeStereo(path, []int{16384, -16384, 8192, 8192}, 22050); err != nil {
		t.Fatalf("writeStereo: %v", err)
	}
	out, rate, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if rate != 22050 {
		t.Errorf("rate = %d, want 22050", rate)
	}
	want := []float32{0, 0.25}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, _, err := DecodeBytes([]byte("definitely not a wave file, just some bytes"))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error = %v, want ErrInvalid", err)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteFile(path, []float32{0, 1, -1}, 8000); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out, rate, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if rate != 8000 || len(out) != 3 {
		t.Fatalf("got %d samples at %d Hz", len(out), rate)
	}
	if out[1] != 32767.0/32768 || out[2] != -1 {
		t.Errorf("clipping: got %v", out)
	}
	if err := WriteFile(path, nil, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func writeStereo(path string, data []int, rate int) error {
	var ws writeSeeker
	enc := wav.NewEncoder(&ws, rate, 16, 2, 1)
	if err := enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: 2},
		SourceBitDepth: 16,
	}); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, ws.buf, 0o644)
}
