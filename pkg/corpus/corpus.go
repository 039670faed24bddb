// Package corpus builds and serves the phoneme inventory of a recorded voice.
//
// A voice corpus is a directory of items, each a WAVE recording paired with
// a TextGrid annotation of the same stem. Building an inventory walks the
// phone tier of every item and records one Instance per interval: the item
// ("word") it came from, the interval index, the stress-stripped labels of
// its neighbours, and an intonation scalar computed from its audio.
//
// Instances are flat values. Context is held as neighbour label strings,
// never as references to other instances, so an inventory can be copied,
// compared and serialised directly.
//
// Once built, an Inventory is read-only and safe for concurrent use.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/haivivi/unitsynth/pkg/audio/wavfile"
	"github.com/haivivi/unitsynth/pkg/storage"
	"github.com/haivivi/unitsynth/pkg/textgrid"
)

// Default tier names, as written by the Montreal Forced Aligner.
const (
	DefaultPhoneTier = "phonetic"
	DefaultWordTier  = "orthographic"
)

// Sentinel errors.
var (
	// ErrCorpusNotFound is returned by Build when the voice directory does
	// not exist or holds no files. It is fatal.
	ErrCorpusNotFound = errors.New("corpus: corpus not found")

	// ErrUnknownPhoneme is returned for a phoneme name never observed in the
	// corpus. Callers treat it as "no candidates".
	ErrUnknownPhoneme = errors.New("corpus: unknown phoneme")

	// ErrUnknownWord is returned for a word key not in the word table.
	ErrUnknownWord = errors.New("corpus: unknown word")

	// ErrSnapshotMiss is returned by Load when no usable snapshot exists:
	// it is missing, corrupt, or was built with different settings.
	ErrSnapshotMiss = errors.New("corpus: snapshot miss")
)

// AudioPolicy selects whether decoded audio stays in memory after the build
// or is read back from storage on every access. Both give identical slices.
type AudioPolicy string

const (
	PolicyMemory AudioPolicy = "memory"
	PolicyDisk   AudioPolicy = "disk"
)

// ParseAudioPolicy validates a policy name. The empty string selects
// PolicyMemory.
func ParseAudioPolicy(s string) (AudioPolicy, error) {
	switch AudioPolicy(s) {
	case "", PolicyMemory:
		return PolicyMemory, nil
	case PolicyDisk:
		return PolicyDisk, nil
	}
	return "", fmt.Errorf("corpus: unknown audio policy %q (want memory or disk)", s)
}

// Instance is one recorded occurrence of a phoneme.
type Instance struct {
	Phoneme    string  `msgpack:"phoneme" json:"phoneme"`
	Word       string  `msgpack:"word" json:"word"`
	Interval   int     `msgpack:"interval" json:"interval"`
	Intonation float64 `msgpack:"intonation" json:"intonation"`

	// Pre and Nex are the stress-stripped labels of the neighbouring
	// intervals in the same word, "" at the word edges.
	Pre string `msgpack:"pre" json:"pre"`
	Nex string `msgpack:"nex" json:"nex"`
}

// Phoneme groups every recorded occurrence of one stress-stripped label, in
// corpus scan order.
type Phoneme struct {
	Name      string     `msgpack:"name" json:"name"`
	Instances []Instance `msgpack:"instances" json:"instances"`
}

// StripStress removes one trailing ARPABET stress digit (0-3) from label.
func StripStress(label string) string {
	if n := len(label); n > 0 && label[n-1] >= '0' && label[n-1] <= '3' {
		return label[:n-1]
	}
	return label
}

// word is one entry of the word table.
type word struct {
	Audio      string
	SampleRate int
	Grid       *textgrid.TextGrid
	Samples    []float32 // nil under PolicyDisk
}

// WordData is the audio and annotation of one corpus item.
type WordData struct {
	Samples    []float32
	SampleRate int
	Grid       *textgrid.TextGrid
}

// Inventory indexes a voice corpus by word and by phoneme.
type Inventory struct {
	voice     string
	policy    AudioPolicy
	heuristic string
	phoneTier string
	store     storage.FileStore
	logger    *slog.Logger

	words    map[string]*word
	phonemes map[string]*Phoneme
}

func newInventory(voice string, policy AudioPolicy, heuristic, phoneTier string, store storage.FileStore, logger *slog.Logger) *Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inventory{
		voice:     voice,
		policy:    policy,
		heuristic: heuristic,
		phoneTier: phoneTier,
		store:     store,
		logger:    logger,
		words:     make(map[string]*word),
		phonemes:  make(map[string]*Phoneme),
	}
}

// Voice returns the voice name.
func (inv *Inventory) Voice() string { return inv.voice }

// Policy returns the audio policy.
func (inv *Inventory) Policy() AudioPolicy { return inv.policy }

// Heuristic returns the name of the intonation heuristic the inventory was
// built with.
func (inv *Inventory) Heuristic() string { return inv.heuristic }

// PhoneTier returns the name of the annotation tier phonemes are read from.
func (inv *Inventory) PhoneTier() string { return inv.phoneTier }

// Phoneme returns the occurrences of name. The result is shared and must
// not be modified.
func (inv *Inventory) Phoneme(name string) (*Phoneme, error) {
	p, ok := inv.phonemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhoneme, name)
	}
	return p, nil
}

// Names returns every observed phoneme name in sorted order.
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.phonemes))
	for name := range inv.phonemes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Words returns every word key in sorted order.
func (inv *Inventory) Words() []string {
	keys := make([]string, 0, len(inv.words))
	for k := range inv.words {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the total number of instances.
func (inv *Inventory) Len() int {
	n := 0
	for _, p := range inv.phonemes {
		n += len(p.Instances)
	}
	return n
}

// WordData returns the audio and annotation of a word. Under PolicyDisk the
// audio is read and decoded again on every call.
func (inv *Inventory) WordData(ctx context.Context, key string) (*WordData, error) {
	w, ok := inv.words[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWord, key)
	}
	samples, rate, err := inv.samples(ctx, w)
	if err != nil {
		return nil, err
	}
	return &WordData{Samples: samples, SampleRate: rate, Grid: w.Grid}, nil
}

// Grid returns the annotation of a word without touching its audio.
func (inv *Inventory) Grid(key string) (*textgrid.TextGrid, error) {
	w, ok := inv.words[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWord, key)
	}
	return w.Grid, nil
}

func (inv *Inventory) samples(ctx context.Context, w *word) ([]float32, int, error) {
	if w.Samples != nil || inv.policy == PolicyMemory {
		return w.Samples, w.SampleRate, nil
	}
	data, err := storage.ReadAll(ctx, inv.store, w.Audio)
	if err != nil {
		return nil, 0, fmt.Errorf("corpus: read %s: %w", w.Audio, err)
	}
	samples, rate, err := wavfile.DecodeBytes(data)
	if err != nil {
		return nil, 0, fmt.Errorf("corpus: decode %s: %w", w.Audio, err)
	}
	return samples, rate, nil
}

// Span returns the sample range [start, end) of an interval at sampleRate:
// floor(sr*xmin) to floor(sr*xmax), clamped to n samples.
func Span(iv textgrid.Interval, sampleRate, n int) (start, end int) {
	start = int(math.Floor(float64(sampleRate) * iv.XMin))
	end = int(math.Floor(float64(sampleRate) * iv.XMax))
	start = min(max(start, 0), n)
	end = min(max(end, start), n)
	return start, end
}

// InstanceAudio is an instance together with its audio slice.
type InstanceAudio struct {
	Instance   Instance
	Samples    []float32
	SampleRate int
	Interval   textgrid.Interval
}

// Audio returns the audio slice of one instance. The slice aliases the word
// table under PolicyMemory and must not be modified.
func (inv *Inventory) Audio(ctx context.Context, in Instance) (*InstanceAudio, error) {
	w, ok := inv.words[in.Word]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWord, in.Word)
	}
	samples, rate, err := inv.samples(ctx, w)
	if err != nil {
		return nil, err
	}
	return slice(w, in, samples, rate, inv.phoneTier)
}

func slice(w *word, in Instance, samples []float32, rate int, tierName string) (*InstanceAudio, error) {
	tier, err := w.Grid.Tier(tierName)
	if err != nil {
		return nil, err
	}
	if in.Interval < 0 || in.Interval >= len(tier.Intervals) {
		return nil, fmt.Errorf("corpus: interval %d out of range in %q", in.Interval, in.Word)
	}
	iv := tier.Intervals[in.Interval]
	start, end := Span(iv, rate, len(samples))
	return &InstanceAudio{
		Instance:   in,
		Samples:    samples[start:end:end],
		SampleRate: rate,
		Interval:   iv,
	}, nil
}

// InstancesWithAudio returns every instance of name with its audio slice,
// in inventory order. Under PolicyDisk each word is read once per call.
func (inv *Inventory) InstancesWithAudio(ctx context.Context, name string) ([]InstanceAudio, error) {
	p, err := inv.Phoneme(name)
	if err != nil {
		return nil, err
	}
	type decoded struct {
		samples []float32
		rate    int
	}
	cache := make(map[string]decoded)
	out := make([]InstanceAudio, 0, len(p.Instances))
	for _, in := range p.Instances {
		w, ok := inv.words[in.Word]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWord, in.Word)
		}
		d, ok := cache[in.Word]
		if !ok {
			d.samples, d.rate, err = inv.samples(ctx, w)
			if err != nil {
				return nil, err
			}
			cache[in.Word] = d
		}
		ia, err := slice(w, in, d.samples, d.rate, inv.phoneTier)
		if err != nil {
			return nil, err
		}
		out = append(out, *ia)
	}
	return out, nil
}
