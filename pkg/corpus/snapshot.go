package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/haivivi/unitsynth/pkg/kv"
	"github.com/haivivi/unitsynth/pkg/storage"
	"github.com/haivivi/unitsynth/pkg/textgrid"
)

// SnapshotVersion is bumped whenever the record layout changes; older
// snapshots are then rebuilt.
const SnapshotVersion = 1

// Snapshot layout, per voice:
//
//	{voice}:meta            snapshotMeta
//	{voice}:word:{nnnnnn}   wordRecord
//	{voice}:phoneme:{nnnnn} Phoneme
//
// Words and phonemes are keyed by ordinal so that any label or stem is
// storable. The voice segment is query-escaped for the same reason.
const (
	segMeta    = "meta"
	segWord    = "word"
	segPhoneme = "phoneme"
)

func snapshotKey(voice string, segs ...string) kv.Key {
	return append(kv.Key{url.QueryEscape(voice)}, segs...)
}

type snapshotMeta struct {
	Version   int         `msgpack:"version"`
	Voice     string      `msgpack:"voice"`
	Policy    AudioPolicy `msgpack:"policy"`
	Heuristic string      `msgpack:"heuristic"`
	PhoneTier string      `msgpack:"phone_tier"`
	Words     int         `msgpack:"words"`
	Phonemes  int         `msgpack:"phonemes"`
	BuiltAt   time.Time   `msgpack:"built_at"`
}

type wordRecord struct {
	Key        string             `msgpack:"key"`
	Audio      string             `msgpack:"audio"`
	SampleRate int                `msgpack:"rate"`
	Grid       *textgrid.TextGrid `msgpack:"grid"`
	Samples    []float32          `msgpack:"samples,omitempty"`
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Voice     string
	Policy    AudioPolicy
	Heuristic string
	PhoneTier string
	Words     int
	Phonemes  int
	BuiltAt   time.Time
}

// Save writes inv to store, replacing any earlier snapshot of the voice.
func Save(ctx context.Context, store kv.Store, inv *Inventory) error {
	ctx, span := tracer.Start(ctx, "corpus.save")
	defer span.End()
	span.SetAttributes(attribute.String("voice", inv.voice))

	if err := kv.DeletePrefix(ctx, store, snapshotKey(inv.voice)); err != nil {
		return fmt.Errorf("corpus: clear snapshot: %w", err)
	}

	var entries []kv.Entry
	for i, key := range inv.Words() {
		w := inv.words[key]
		rec := wordRecord{Key: key, Audio: w.Audio, SampleRate: w.SampleRate, Grid: w.Grid}
		if inv.policy == PolicyMemory {
			rec.Samples = w.Samples
		}
		b, err := msgpack.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("corpus: encode word %q: %w", key, err)
		}
		entries = append(entries, kv.Entry{Key: snapshotKey(inv.voice, segWord, fmt.Sprintf("%06d", i)), Value: b})
	}
	names := inv.Names()
	for i, name := range names {
		b, err := msgpack.Marshal(inv.phonemes[name])
		if err != nil {
			return fmt.Errorf("corpus: encode phoneme %q: %w", name, err)
		}
		entries = append(entries, kv.Entry{Key: snapshotKey(inv.voice, segPhoneme, fmt.Sprintf("%05d", i)), Value: b})
	}

	// Meta goes last: a snapshot without it is treated as missing.
	if err := store.BatchSet(ctx, entries); err != nil {
		return fmt.Errorf("corpus: write snapshot: %w", err)
	}
	meta, err := msgpack.Marshal(&snapshotMeta{
		Version:   SnapshotVersion,
		Voice:     inv.voice,
		Policy:    inv.policy,
		Heuristic: inv.heuristic,
		PhoneTier: inv.phoneTier,
		Words:     len(inv.words),
		Phonemes:  len(names),
		BuiltAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("corpus: encode snapshot meta: %w", err)
	}
	if err := store.Set(ctx, snapshotKey(inv.voice, segMeta), meta); err != nil {
		return fmt.Errorf("corpus: write snapshot meta: %w", err)
	}
	return nil
}

// Stat returns the metadata of the stored snapshot of voice, or
// ErrSnapshotMiss.
func Stat(ctx context.Context, store kv.Store, voice string) (*SnapshotInfo, error) {
	voice, err := CleanVoice(voice)
	if err != nil {
		return nil, err
	}
	meta, err := readMeta(ctx, store, voice)
	if err != nil {
		return nil, err
	}
	return &SnapshotInfo{
		Voice:     meta.Voice,
		Policy:    meta.Policy,
		Heuristic: meta.Heuristic,
		PhoneTier: meta.PhoneTier,
		Words:     meta.Words,
		Phonemes:  meta.Phonemes,
		BuiltAt:   meta.BuiltAt,
	}, nil
}

func readMeta(ctx context.Context, store kv.Store, voice string) (*snapshotMeta, error) {
	b, err := store.Get(ctx, snapshotKey(voice, segMeta))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: no snapshot for %q", ErrSnapshotMiss, voice)
	}
	if err != nil {
		return nil, err
	}
	var meta snapshotMeta
	if err := msgpack.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("%w: corrupt meta: %v", ErrSnapshotMiss, err)
	}
	if meta.Version != SnapshotVersion || meta.Voice != voice {
		return nil, fmt.Errorf("%w: snapshot version %d for %q", ErrSnapshotMiss, meta.Version, meta.Voice)
	}
	return &meta, nil
}

// LoadConfig describes the inventory a caller expects from a snapshot.
type LoadConfig struct {
	Voice     string
	Policy    AudioPolicy
	Heuristic string
	PhoneTier string

	// Store is used to re-read audio under PolicyDisk.
	Store storage.FileStore

	Logger *slog.Logger
}

// Load restores the inventory of cfg.Voice from store. It never computes
// intonation. A missing or corrupt snapshot, or one built with another
// policy, heuristic or phone tier, yields ErrSnapshotMiss.
func Load(ctx context.Context, store kv.Store, cfg LoadConfig) (*Inventory, error) {
	voice, err := CleanVoice(cfg.Voice)
	if err != nil {
		return nil, err
	}
	cfg.Voice = voice
	ctx, span := tracer.Start(ctx, "corpus.load")
	defer span.End()
	span.SetAttributes(attribute.String("voice", cfg.Voice))

	policy, err := ParseAudioPolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	if policy == PolicyDisk && cfg.Store == nil {
		return nil, fmt.Errorf("corpus: disk policy needs a file store")
	}
	if cfg.PhoneTier == "" {
		cfg.PhoneTier = DefaultPhoneTier
	}
	meta, err := readMeta(ctx, store, cfg.Voice)
	if err != nil {
		return nil, err
	}
	if meta.Policy != policy || meta.Heuristic != cfg.Heuristic || meta.PhoneTier != cfg.PhoneTier {
		return nil, fmt.Errorf("%w: built with policy=%s heuristic=%s tier=%s",
			ErrSnapshotMiss, meta.Policy, meta.Heuristic, meta.PhoneTier)
	}

	inv := newInventory(cfg.Voice, policy, meta.Heuristic, meta.PhoneTier, cfg.Store, cfg.Logger)
	for e, err := range store.List(ctx, snapshotKey(cfg.Voice, segWord)) {
		if err != nil {
			return nil, err
		}
		var rec wordRecord
		if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("%w: corrupt word %s: %v", ErrSnapshotMiss, e.Key, err)
		}
		if rec.Grid == nil {
			return nil, fmt.Errorf("%w: word %q has no annotation", ErrSnapshotMiss, rec.Key)
		}
		inv.words[rec.Key] = &word{Audio: rec.Audio, SampleRate: rec.SampleRate, Grid: rec.Grid, Samples: rec.Samples}
	}
	for e, err := range store.List(ctx, snapshotKey(cfg.Voice, segPhoneme)) {
		if err != nil {
			return nil, err
		}
		var p Phoneme
		if err := msgpack.Unmarshal(e.Value, &p); err != nil {
			return nil, fmt.Errorf("%w: corrupt phoneme %s: %v", ErrSnapshotMiss, e.Key, err)
		}
		inv.phonemes[p.Name] = &p
	}
	if len(inv.words) != meta.Words || len(inv.phonemes) != meta.Phonemes {
		return nil, fmt.Errorf("%w: incomplete snapshot (%d/%d words, %d/%d phonemes)",
			ErrSnapshotMiss, len(inv.words), meta.Words, len(inv.phonemes), meta.Phonemes)
	}
	span.SetAttributes(attribute.Int("instances", inv.Len()))
	return inv, nil
}

// LoadOrBuild returns the snapshot of cfg.Voice when a matching one exists,
// and otherwise builds the inventory and saves it. A nil snapshots store
// always builds and never saves. The report is nil on a snapshot hit.
//
// Failing to save a rebuilt snapshot is an error.
func LoadOrBuild(ctx context.Context, snapshots kv.Store, cfg BuildConfig) (*Inventory, *BuildReport, error) {
	if err := cfg.defaults(); err != nil {
		return nil, nil, err
	}
	if snapshots != nil {
		inv, err := Load(ctx, snapshots, LoadConfig{
			Voice:     cfg.Voice,
			Policy:    cfg.Policy,
			Heuristic: cfg.Heuristic,
			PhoneTier: cfg.PhoneTier,
			Store:     cfg.Store,
			Logger:    cfg.Logger,
		})
		if err == nil {
			cfg.Logger.Debug("loaded inventory snapshot", "voice", cfg.Voice, "instances", inv.Len())
			return inv, nil, nil
		}
		if !errors.Is(err, ErrSnapshotMiss) {
			return nil, nil, err
		}
		cfg.Logger.Info("rebuilding inventory", "voice", cfg.Voice, "reason", err)
	}

	inv, report, err := Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if snapshots != nil {
		if err := Save(ctx, snapshots, inv); err != nil {
			return nil, nil, err
		}
	}
	return inv, report, nil
}
