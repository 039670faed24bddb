package pitch

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Heuristic names.
const (
	UpspeakCoarse = "upspeak_coarse"
	UpspeakFifths = "upspeak_fifths"
	PeakToPeak    = "peak_to_peak"

	// DefaultHeuristic is used when no heuristic is configured.
	DefaultHeuristic = PeakToPeak
)

// ErrUnknownHeuristic is returned by Lookup for an unregistered name.
var ErrUnknownHeuristic = errors.New("pitch: unknown heuristic")

// Heuristic reduces an f0 track to one intonation differential. Tracks with
// fewer than two frames carry no movement and score +Inf, which ranks them
// last wherever lower intonation is preferred.
type Heuristic func(f0 []float64) float64

// IntonationFunc turns a waveform segment and its sample rate into one
// intonation scalar.
type IntonationFunc func(samples []float32, sampleRate int) float64

var heuristics = map[string]Heuristic{
	UpspeakCoarse: upspeakCoarse,
	UpspeakFifths: upspeakFifths,
	PeakToPeak:    peakToPeak,
}

// Lookup returns the heuristic registered under name.
func Lookup(name string) (Heuristic, error) {
	h, ok := heuristics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownHeuristic, name, Names())
	}
	return h, nil
}

// Names returns the registered heuristic names in sorted order.
func Names() []string {
	names := make([]string, 0, len(heuristics))
	for name := range heuristics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Intonation combines a tracker and a heuristic into an IntonationFunc.
func Intonation(t *Tracker, h Heuristic) IntonationFunc {
	return func(samples []float32, sampleRate int) float64 {
		return h(t.Track(samples, sampleRate))
	}
}

// NewIntonation builds the IntonationFunc for a named heuristic with the
// default tracker.
func NewIntonation(name string) (IntonationFunc, error) {
	h, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	t, err := NewTracker(DefaultConfig())
	if err != nil {
		return nil, err
	}
	return Intonation(t, h), nil
}

// upspeakCoarse is the last estimate minus the first.
func upspeakCoarse(f0 []float64) float64 {
	if len(f0) < 2 {
		return math.Inf(1)
	}
	return f0[len(f0)-1] - f0[0]
}

// upspeakFifths is the mean of the last fifth minus the mean of the first
// fifth, each fifth rounded up to whole frames.
func upspeakFifths(f0 []float64) float64 {
	if len(f0) < 2 {
		return math.Inf(1)
	}
	n := (len(f0) + 4) / 5
	return mean(f0[len(f0)-n:]) - mean(f0[:n])
}

func peakToPeak(f0 []float64) float64 {
	if len(f0) < 2 {
		return math.Inf(1)
	}
	return slices.Max(f0) - slices.Min(f0)
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
