package pitch

import (
	"errors"
	"math"
	"testing"
)

func sine(freq float64, sr, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.6 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	return out
}

func TestFFT(t *testing.T) {
	// DC + 1 Hz cosine in an 8-sample window.
	n := 8
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range re {
		re[i] = 1.0 + math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	orig := append([]float64(nil), re...)
	fft(re, im)

	if math.Abs(re[0]-float64(n)) > 0.01 {
		t.Errorf("DC = %f, want %d", re[0], n)
	}
	if math.Abs(re[1]-float64(n)/2) > 0.01 {
		t.Errorf("H1 real = %f, want %f", re[1], float64(n)/2)
	}

	ifft(re, im)
	for i := range orig {
		if math.Abs(re[i]-orig[i]) > 1e-9 || math.Abs(im[i]) > 1e-9 {
			t.Fatalf("ifft(fft(x))[%d] = %v%+vi, want %v", i, re[i], im[i], orig[i])
		}
	}
}

func TestTrack_Sine(t *testing.T) {
	tr, err := NewTracker(DefaultConfig())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tests := []struct {
		freq float64
		sr   int
	}{
		{110, 16000},
		{220, 22050},
		{150, 44100},
	}
	for _, tt := range tests {
		f0 := tr.Track(sine(tt.freq, tt.sr, tt.sr/2), tt.sr)
		if want := 1 + (tt.sr/2)/512; len(f0) != want {
			t.Fatalf("%v Hz: %d frames, want %d", tt.freq, len(f0), want)
		}
		for i, f := range f0[2 : len(f0)-2] {
			if math.Abs(f-tt.freq)/tt.freq > 0.02 {
				t.Errorf("%v Hz @ %d: frame %d = %.2f Hz", tt.freq, tt.sr, i+2, f)
			}
		}
	}
}

func TestTrack_Finite(t *testing.T) {
	tr, _ := NewTracker(DefaultConfig())
	noise := make([]float32, 3000)
	seed := uint32(1)
	for i := range noise {
		seed = seed*1664525 + 1013904223
		noise[i] = float32(seed>>8)/float32(1<<24) - 0.5
	}
	for _, in := range [][]float32{noise, make([]float32, 2000), {0.5}} {
		for i, f := range tr.Track(in, 16000) {
			if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
				t.Fatalf("frame %d = %v", i, f)
			}
		}
	}
	if f0 := tr.Track(nil, 16000); f0 != nil {
		t.Errorf("Track(nil) = %v", f0)
	}
}

func TestNewTracker_Invalid(t *testing.T) {
	tests := []Config{
		{FrameLength: 0, HopLength: 512, FMin: 60, FMax: 300, Threshold: 0.1},
		{FrameLength: 2048, WinLength: 2048, HopLength: 512, FMin: 60, FMax: 300, Threshold: 0.1},
		{FrameLength: 2048, HopLength: 512, FMin: 300, FMax: 60, Threshold: 0.1},
		{FrameLength: 2048, HopLength: 512, FMin: 60, FMax: 300, Threshold: 1.5},
	}
	for i, cfg := range tests {
		if _, err := NewTracker(cfg); !errors.Is(err, ErrConfig) {
			t.Errorf("case %d: error = %v, want ErrConfig", i, err)
		}
	}
}

func TestHeuristics(t *testing.T) {
	track := []float64{100, 120, 90, 110, 130, 140}
	tests := []struct {
		name string
		want float64
	}{
		{UpspeakCoarse, 40},
		{UpspeakFifths, (130+140)/2.0 - (100+120)/2.0},
		{PeakToPeak, 50},
	}
	for _, tt := range tests {
		h, err := Lookup(tt.name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", tt.name, err)
		}
		if got := h(track); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
		for _, short := range [][]float64{nil, {100}} {
			if got := h(short); !math.IsInf(got, 1) {
				t.Errorf("%s(%v) = %v, want +Inf", tt.name, short, got)
			}
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup("vibrato"); !errors.Is(err, ErrUnknownHeuristic) {
		t.Fatalf("error = %v, want ErrUnknownHeuristic", err)
	}
	if _, err := NewIntonation("vibrato"); !errors.Is(err, ErrUnknownHeuristic) {
		t.Fatalf("error = %v, want ErrUnknownHeuristic", err)
	}
}

func TestIntonation_Steady(t *testing.T) {
	f, err := NewIntonation(DefaultHeuristic)
	if err != nil {
		t.Fatalf("NewIntonation: %v", err)
	}
	if got := f(sine(200, 16000, 8000), 16000); math.IsInf(got, 0) || got < 0 {
		t.Errorf("peak_to_peak of a steady tone = %v, want finite", got)
	}
	if got := f(sine(200, 16000, 100), 16000); !math.IsInf(got, 1) {
		t.Errorf("single-frame segment = %v, want +Inf", got)
	}
}
