package resampler

import (
	"math"
	"testing"
)

func TestConvert_Length(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		from, to int
		want     int
	}{
		{"down", 4410, 44100, 22050, 2205},
		{"up", 1600, 16000, 48000, 4800},
		{"odd", 1000, 22050, 16000, 726},
		{"empty", 0, 16000, 8000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Convert(make([]float32, tt.n), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestConvert_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Convert(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	out[0] = 1
	if in[0] != 0.1 {
		t.Fatal("Convert aliased its input")
	}
}

func TestConvert_PreservesTone(t *testing.T) {
	const from, to = 48000, 16000
	in := make([]float32, from/10)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/from))
	}
	out, err := Convert(in, from, to)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	var peak float64
	for _, s := range out[len(out)/4 : 3*len(out)/4] {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	if peak < 0.3 || peak > 0.7 {
		t.Errorf("peak = %v, want about 0.5", peak)
	}
}

func TestConvert_InvalidRate(t *testing.T) {
	if _, err := Convert([]float32{0}, 0, 16000); err == nil {
		t.Fatal("expected error for zero rate")
	}
}
