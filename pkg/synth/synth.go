// Package synth concatenates unit audio with linear crossfades.
//
// Each unit after the first is faded in over a window of
// floor(0.1 * min(previous, current)) samples. The overlap coefficient v
// decides how much of that window overlaps the previous unit's tail:
// floor((1-v) * window) samples of silence are put in front of the new unit,
// so v = 1 overlaps fully and v = 0 fades the previous unit out to silence
// before the new unit starts.
package synth

import (
	"errors"
	"fmt"
	"math"
)

// CrossfadeRatio is the crossfade window as a fraction of the shorter of two
// adjacent units.
const CrossfadeRatio = 0.1

// ErrOverlapRange is returned for an overlap coefficient outside [0, 1].
var ErrOverlapRange = errors.New("synth: crossfade overlap out of range [0, 1]")

// Options controls concatenation.
type Options struct {
	Crossfade bool
	Overlap   float64
}

// DefaultOptions crossfades with full overlap.
func DefaultOptions() Options {
	return Options{Crossfade: true, Overlap: 1}
}

// Validate reports whether the options can be used.
func (o Options) Validate() error {
	if math.IsNaN(o.Overlap) || o.Overlap < 0 || o.Overlap > 1 {
		return fmt.Errorf("%w: %v", ErrOverlapRange, o.Overlap)
	}
	return nil
}

// CrossfadeLen returns the crossfade window for two adjacent units of the
// given lengths.
func CrossfadeLen(prev, cur int) int {
	n := min(prev, cur)
	if n <= 0 {
		return 0
	}
	return int(math.Floor(CrossfadeRatio * float64(n)))
}

// Builder accumulates the output waveform one unit at a time.
type Builder struct {
	opts    Options
	out     []float32
	prevLen int
	units   int
}

// NewBuilder validates opts and returns an empty Builder.
func NewBuilder(opts Options) (*Builder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Builder{opts: opts}, nil
}

// Append adds one unit. The first unit, and every unit when crossfading is
// off, is appended unchanged. A zero-length window leaves the output as is
// and appends the unit unchanged.
func (b *Builder) Append(samples []float32) {
	defer func() {
		b.prevLen = len(samples)
		b.units++
	}()

	cf := 0
	if b.opts.Crossfade && b.units > 0 {
		cf = min(CrossfadeLen(b.prevLen, len(samples)), len(b.out))
	}
	if cf == 0 {
		b.out = append(b.out, samples...)
		return
	}

	pad := int(math.Floor((1 - b.opts.Overlap) * float64(cf)))
	cur := make([]float32, pad+len(samples))
	copy(cur[pad:], samples)

	// The fade-in reads the padded unit, so the first pad samples of the
	// window fade in silence.
	tail := b.out[len(b.out)-cf:]
	for t := range cf {
		wPrev := float32(cf-t) / float32(cf)
		wCur := float32(t) / float32(cf)
		tail[t] = tail[t]*wPrev + cur[t]*wCur
	}
	b.out = append(b.out, cur[cf:]...)
}

// AppendSilence adds n samples of silence as a unit of its own.
func (b *Builder) AppendSilence(n int) {
	b.Append(make([]float32, max(n, 0)))
}

// Units returns the number of units appended so far.
func (b *Builder) Units() int { return b.units }

// Len returns the current output length in samples.
func (b *Builder) Len() int { return len(b.out) }

// Samples returns the output. The slice is owned by the Builder until the
// next Append.
func (b *Builder) Samples() []float32 { return b.out }

// Concatenate joins units with opts. Options are validated before any audio
// is touched.
func Concatenate(units [][]float32, opts Options) ([]float32, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		b.Append(u)
	}
	return b.Samples(), nil
}
