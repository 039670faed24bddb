package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/haivivi/unitsynth/pkg/audio/wavfile"
	"github.com/haivivi/unitsynth/pkg/pitch"
	"github.com/haivivi/unitsynth/pkg/storage"
	"github.com/haivivi/unitsynth/pkg/textgrid"
)

var tracer = otel.Tracer("github.com/haivivi/unitsynth/pkg/corpus")

// BuildConfig configures Build.
type BuildConfig struct {
	// Voice names the corpus directory inside Store. Required.
	Voice string

	// Store holds the voice corpora. Required.
	Store storage.FileStore

	// Intonation computes the intonation scalar of every interval. Required.
	Intonation pitch.IntonationFunc

	// Heuristic is the name of the heuristic behind Intonation. It is
	// recorded in snapshots so that a change invalidates them.
	Heuristic string

	// Policy is the audio policy. Defaults to PolicyMemory.
	Policy AudioPolicy

	// PhoneTier is the annotation tier holding phonemes. Defaults to
	// DefaultPhoneTier.
	PhoneTier string

	// Logger receives skip warnings and progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// CleanVoice normalises a voice name to the slash-separated path of its
// corpus directory inside the store: "alice/" and "./alice" are "alice".
// Names that are empty or leave the store are rejected.
func CleanVoice(voice string) (string, error) {
	v := path.Clean(strings.Trim(strings.TrimSpace(voice), "/"))
	if v == "." || v == ".." || strings.HasPrefix(v, "../") {
		return "", fmt.Errorf("corpus: invalid voice %q", voice)
	}
	return v, nil
}

func (c *BuildConfig) defaults() error {
	if c.Voice == "" {
		return fmt.Errorf("corpus: voice is required")
	}
	voice, err := CleanVoice(c.Voice)
	if err != nil {
		return err
	}
	c.Voice = voice
	if c.Store == nil {
		return fmt.Errorf("corpus: store is required")
	}
	if c.Intonation == nil {
		return fmt.Errorf("corpus: intonation function is required")
	}
	policy, err := ParseAudioPolicy(string(c.Policy))
	if err != nil {
		return err
	}
	c.Policy = policy
	if c.PhoneTier == "" {
		c.PhoneTier = DefaultPhoneTier
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// SkipError describes a corpus item left out of the inventory. Skips are
// recoverable: they are logged and collected, never returned from Build.
type SkipError struct {
	Item   string
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corpus: skip %s: %s: %v", e.Item, e.Reason, e.Err)
	}
	return fmt.Sprintf("corpus: skip %s: %s", e.Item, e.Reason)
}

func (e *SkipError) Unwrap() error { return e.Err }

// BuildReport summarises a build.
type BuildReport struct {
	Items     int
	Instances int
	Skipped   []*SkipError
	Elapsed   time.Duration
}

// item is one candidate corpus entry before pairing is checked.
type item struct {
	stem  string
	grid  string
	audio string
}

// Build scans the corpus of cfg.Voice and returns its inventory. Items with
// a missing pair file, an unparseable annotation, no phone tier or
// undecodable audio are skipped and listed in the report.
func Build(ctx context.Context, cfg BuildConfig) (*Inventory, *BuildReport, error) {
	if err := cfg.defaults(); err != nil {
		return nil, nil, err
	}
	ctx, span := tracer.Start(ctx, "corpus.build")
	defer span.End()
	span.SetAttributes(
		attribute.String("voice", cfg.Voice),
		attribute.String("policy", string(cfg.Policy)),
	)

	start := time.Now()
	items, err := listItems(ctx, cfg.Store, cfg.Voice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	inv := newInventory(cfg.Voice, cfg.Policy, cfg.Heuristic, cfg.PhoneTier, cfg.Store, cfg.Logger)
	report := &BuildReport{}
	skip := func(s *SkipError) {
		cfg.Logger.Warn("skipping corpus item", "voice", cfg.Voice, "item", s.Item, "reason", s.Reason, "error", s.Err)
		report.Skipped = append(report.Skipped, s)
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		switch {
		case it.grid == "":
			skip(&SkipError{Item: it.stem, Reason: "missing annotation"})
			continue
		case it.audio == "":
			skip(&SkipError{Item: it.stem, Reason: "missing audio"})
			continue
		}
		if s := inv.addItem(ctx, it, cfg.Intonation); s != nil {
			skip(s)
			continue
		}
		report.Items++
	}

	report.Instances = inv.Len()
	report.Elapsed = time.Since(start)
	span.SetAttributes(
		attribute.Int("items", report.Items),
		attribute.Int("instances", report.Instances),
		attribute.Int("skipped", len(report.Skipped)),
	)
	cfg.Logger.Info("built inventory",
		"voice", cfg.Voice,
		"items", report.Items,
		"phonemes", len(inv.phonemes),
		"instances", report.Instances,
		"skipped", len(report.Skipped),
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return inv, report, nil
}

// listItems pairs the annotation and audio files of a voice by stem, in
// sorted stem order.
func listItems(ctx context.Context, store storage.FileStore, voice string) ([]item, error) {
	files, err := store.List(ctx, voice)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorpusNotFound, voice, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCorpusNotFound, voice)
	}

	byStem := make(map[string]*item)
	var order []string
	for _, f := range files {
		// Only direct children of the voice directory are items.
		if path.Dir(f) != voice {
			continue
		}
		ext := path.Ext(f)
		isGrid := strings.EqualFold(ext, ".TextGrid")
		isAudio := strings.EqualFold(ext, ".wav")
		if !isGrid && !isAudio {
			continue
		}
		stem := storage.Stem(f)
		it, ok := byStem[stem]
		if !ok {
			it = &item{stem: stem}
			byStem[stem] = it
			order = append(order, stem)
		}
		if isGrid {
			it.grid = f
		} else {
			it.audio = f
		}
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("%w: %s: no .wav or .TextGrid files", ErrCorpusNotFound, voice)
	}

	// Sorted paths do not imply sorted stems ("a.b.wav" < "a.wav").
	slices.Sort(order)
	items := make([]item, 0, len(order))
	for _, stem := range order {
		items = append(items, *byStem[stem])
	}
	return items, nil
}

// addItem loads one paired item and appends its instances. It returns a
// SkipError when the item cannot be used; the inventory is unchanged then.
func (inv *Inventory) addItem(ctx context.Context, it item, intonation pitch.IntonationFunc) *SkipError {
	raw, err := storage.ReadAll(ctx, inv.store, it.grid)
	if err != nil {
		return &SkipError{Item: it.stem, Reason: "unreadable annotation", Err: err}
	}
	grid, err := textgrid.Parse(raw)
	if err != nil {
		return &SkipError{Item: it.stem, Reason: "unparseable annotation", Err: err}
	}
	tier, err := grid.Tier(inv.phoneTier)
	if err != nil {
		return &SkipError{Item: it.stem, Reason: "no phone tier", Err: err}
	}

	data, err := storage.ReadAll(ctx, inv.store, it.audio)
	if err != nil {
		return &SkipError{Item: it.stem, Reason: "unreadable audio", Err: err}
	}
	samples, rate, err := wavfile.DecodeBytes(data)
	if err != nil {
		return &SkipError{Item: it.stem, Reason: "undecodable audio", Err: err}
	}

	w := &word{Audio: it.audio, SampleRate: rate, Grid: grid}
	if inv.policy == PolicyMemory {
		w.Samples = samples
	}
	inv.words[it.stem] = w

	// The previous instance is addressed by phoneme and index: appending to
	// its group may move it.
	var (
		prevGroup *Phoneme
		prevIdx   int
		pre       string
	)
	for i, iv := range tier.Intervals {
		name := StripStress(iv.Text)
		start, end := Span(iv, rate, len(samples))

		p, ok := inv.phonemes[name]
		if !ok {
			p = &Phoneme{Name: name}
			inv.phonemes[name] = p
		}
		p.Instances = append(p.Instances, Instance{
			Phoneme:    name,
			Word:       it.stem,
			Interval:   i,
			Intonation: intonation(samples[start:end:end], rate),
			Pre:        pre,
		})
		if prevGroup != nil {
			prevGroup.Instances[prevIdx].Nex = name
		}
		prevGroup, prevIdx = p, len(p.Instances)-1
		pre = name
	}
	return nil
}
