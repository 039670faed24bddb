// Package pitch estimates the fundamental frequency of voiced speech and
// reduces an f0 track to a single intonation scalar.
//
// The tracker implements YIN (de Cheveigné and Kawahara, 2002): per frame,
// the cumulative-mean-normalised difference function is searched for the
// first dip under a threshold, refined by parabolic interpolation. Frames are
// centred on hop positions with reflect padding, so a signal of n samples
// yields 1 + n/hop estimates.
package pitch

import (
	"errors"
	"fmt"
	"math"
)

// Note frequencies used as the default search range.
const (
	NoteC2 = 65.40639132514966
	NoteE4 = 329.6275569128699
)

// ErrConfig is returned by NewTracker for unusable parameters.
var ErrConfig = errors.New("pitch: invalid tracker config")

// Config controls the YIN tracker.
type Config struct {
	FrameLength int     // analysis frame in samples (default 2048)
	WinLength   int     // integration window in samples (default FrameLength/2)
	HopLength   int     // hop between frames in samples (default 512)
	FMin        float64 // lowest detectable f0 in Hz (default C2)
	FMax        float64 // highest detectable f0 in Hz (default E4)
	Threshold   float64 // absolute dip threshold (default 0.1)
}

// DefaultConfig returns the tracker configuration used for corpus builds.
func DefaultConfig() Config {
	return Config{
		FrameLength: 2048,
		WinLength:   1024,
		HopLength:   512,
		FMin:        NoteC2,
		FMax:        NoteE4,
		Threshold:   0.1,
	}
}

// Tracker estimates f0 tracks. It holds no per-call state and is safe for
// concurrent use.
type Tracker struct {
	cfg  Config
	nfft int
}

// NewTracker validates cfg and returns a Tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.WinLength == 0 {
		cfg.WinLength = cfg.FrameLength / 2
	}
	switch {
	case cfg.FrameLength <= 0 || cfg.HopLength <= 0:
		return nil, fmt.Errorf("%w: frame %d hop %d", ErrConfig, cfg.FrameLength, cfg.HopLength)
	case cfg.WinLength <= 0 || cfg.WinLength >= cfg.FrameLength-1:
		return nil, fmt.Errorf("%w: window %d for frame %d", ErrConfig, cfg.WinLength, cfg.FrameLength)
	case cfg.FMin <= 0 || cfg.FMax <= cfg.FMin:
		return nil, fmt.Errorf("%w: range %.2f-%.2f Hz", ErrConfig, cfg.FMin, cfg.FMax)
	case cfg.Threshold <= 0 || cfg.Threshold >= 1:
		return nil, fmt.Errorf("%w: threshold %v", ErrConfig, cfg.Threshold)
	}
	return &Tracker{cfg: cfg, nfft: nextPow2(cfg.FrameLength + cfg.WinLength)}, nil
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// periods returns the lag search range for a sample rate.
func (t *Tracker) periods(sampleRate int) (lo, hi int) {
	sr := float64(sampleRate)
	lo = max(1, int(math.Floor(sr/t.cfg.FMax)))
	hi = min(int(math.Ceil(sr/t.cfg.FMin)), t.cfg.FrameLength-t.cfg.WinLength-1)
	return lo, hi
}

// Track returns one f0 estimate in Hz per frame. Unvoiced frames keep the
// best candidate period instead of being marked, so every value is finite.
// It returns nil for empty input or a sample rate the search range cannot
// cover.
func (t *Tracker) Track(samples []float32, sampleRate int) []float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return nil
	}
	lo, hi := t.periods(sampleRate)
	if hi <= lo+1 {
		return nil
	}

	frames := 1 + len(samples)/t.cfg.HopLength
	f0 := make([]float64, frames)
	frame := make([]float64, t.cfg.FrameLength)
	cmnd := make([]float64, hi+2)
	for i := range frames {
		t.fill(frame, samples, i*t.cfg.HopLength-t.cfg.FrameLength/2)
		t.cmnd(frame, cmnd[:hi+2])
		f0[i] = float64(sampleRate) / max(1, pickPeriod(cmnd, lo, hi, t.cfg.Threshold))
	}
	return f0
}

// fill copies the frame starting at offset, reflecting indexes that fall
// outside the signal.
func (t *Tracker) fill(frame []float64, samples []float32, offset int) {
	n := len(samples)
	for j := range frame {
		frame[j] = float64(samples[reflect(offset+j, n)])
	}
}

func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// cmnd writes the cumulative-mean-normalised difference function of frame
// for lags [0, len(out)) into out. The autocorrelation term is computed by
// FFT as the cross-correlation of the first window with the whole frame.
func (t *Tracker) cmnd(frame, out []float64) {
	win := t.cfg.WinLength
	n := t.nfft

	xr, xi := make([]float64, n), make([]float64, n)
	ar, ai := make([]float64, n), make([]float64, n)
	copy(xr, frame)
	copy(ar, frame[:win])
	fft(xr, xi)
	fft(ar, ai)
	// conj(A) * X
	for k := 0; k < n; k++ {
		r := ar[k]*xr[k] + ai[k]*xi[k]
		i := ar[k]*xi[k] - ai[k]*xr[k]
		xr[k], xi[k] = r, i
	}
	ifft(xr, xi)

	// energy[tau] = sum of frame[tau : tau+win]^2
	energy := func() func(tau int) float64 {
		prefix := make([]float64, len(frame)+1)
		for j, v := range frame {
			prefix[j+1] = prefix[j] + v*v
		}
		return func(tau int) float64 { return prefix[tau+win] - prefix[tau] }
	}()

	e0 := energy(0)
	out[0] = 1
	var sum float64
	for tau := 1; tau < len(out); tau++ {
		d := e0 + energy(tau) - 2*xr[tau]
		if d < 1e-12 {
			d = 0
		}
		sum += d
		if sum == 0 {
			out[tau] = 1
			continue
		}
		out[tau] = d * float64(tau) / sum
	}
}

// pickPeriod returns the refined period in samples: the first local minimum
// under threshold in [lo, hi], or the global minimum of that range when no
// dip reaches the threshold.
func pickPeriod(cmnd []float64, lo, hi int, threshold float64) float64 {
	best := -1
	for tau := lo; tau <= hi; tau++ {
		if cmnd[tau] < threshold {
			for tau+1 <= hi && cmnd[tau+1] < cmnd[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		best = lo
		for tau := lo + 1; tau <= hi; tau++ {
			if cmnd[tau] < cmnd[best] {
				best = tau
			}
		}
	}
	return parabolic(cmnd, best)
}

// parabolic refines a minimum at tau by fitting a parabola through its
// neighbours.
func parabolic(y []float64, tau int) float64 {
	if tau <= 0 || tau+1 >= len(y) {
		return float64(tau)
	}
	a, b, c := y[tau-1], y[tau], y[tau+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(tau)
	}
	shift := 0.5 * (a - c) / den
	if math.Abs(shift) > 1 {
		return float64(tau)
	}
	return float64(tau) + shift
}
