package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/pkg/cli"
	"github.com/haivivi/unitsynth/pkg/corpus"
	"github.com/haivivi/unitsynth/pkg/kv"
	"github.com/haivivi/unitsynth/pkg/lexicon"
	"github.com/haivivi/unitsynth/pkg/pitch"
	"github.com/haivivi/unitsynth/pkg/storage"
	"github.com/haivivi/unitsynth/pkg/typeme"
)

// env resolves configuration into the stores and components a command
// needs.
type env struct {
	cfg       *cli.Config
	paths     *cli.Paths
	voicesDir string
	cacheDir  string
	logger    *slog.Logger
}

func newEnv() (*env, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, err
	}
	cfg := GetConfig()
	voices, cache := paths.Resolve(cfg)
	if voicesDir != "" {
		voices = voicesDir
	}
	if cacheDir != "" {
		cache = cacheDir
	}
	return &env{cfg: cfg, paths: paths, voicesDir: voices, cacheDir: cache, logger: slog.Default()}, nil
}

// useS3 reports whether corpora come from the configured bucket. An
// explicit --voices-dir always wins.
func (e *env) useS3() bool {
	return voicesDir == "" && e.cfg.S3 != nil && e.cfg.S3.Bucket != ""
}

// corpora opens the store holding every voice.
func (e *env) corpora() (storage.FileStore, error) {
	if e.useS3() {
		s := e.cfg.S3
		return storage.NewS3(storage.NewS3Client(*s), s.Bucket, s.Prefix), nil
	}
	local, err := storage.OpenLocal(e.voicesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", corpus.ErrCorpusNotFound, e.voicesDir)
	}
	return local, err
}

func (e *env) snapshotDir(voice string) string {
	return e.paths.SnapshotDir(e.cacheDir, voice)
}

// openSnapshots opens the snapshot database of voice, creating it if needed.
func (e *env) openSnapshots(voice string) (*kv.Badger, error) {
	dir := e.snapshotDir(voice)
	if err := cli.EnsureDir(dir); err != nil {
		return nil, err
	}
	return kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: e.logger})
}

func (e *env) tree() (*typeme.Tree, error) {
	if e.cfg.Taxonomy == "" {
		return typeme.Phonetic(), nil
	}
	return typeme.LoadFile(e.cfg.Taxonomy)
}

// inventoryFlags are the flags shared by commands that load an inventory.
type inventoryFlags struct {
	heuristic string
	policy    string
	phoneTier string
	noCache   bool
	force     bool
}

func (f *inventoryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.heuristic, "heuristic", "", fmt.Sprintf("intonation heuristic %v (default %s)", pitch.Names(), pitch.DefaultHeuristic))
	cmd.Flags().StringVar(&f.policy, "audio-policy", "", "keep audio in memory or re-read it from disk (memory|disk)")
	cmd.Flags().StringVar(&f.phoneTier, "phone-tier", "", "annotation tier holding phones (default "+corpus.DefaultPhoneTier+")")
}

// buildConfig merges flags, config file and defaults.
func (e *env) buildConfig(cmd *cobra.Command, voice string, f *inventoryFlags) (corpus.BuildConfig, error) {
	heuristic := pick(cmd, "heuristic", f.heuristic, e.cfg.Heuristic, pitch.DefaultHeuristic)
	intonation, err := pitch.NewIntonation(heuristic)
	if err != nil {
		return corpus.BuildConfig{}, err
	}
	policy, err := corpus.ParseAudioPolicy(pick(cmd, "audio-policy", f.policy, e.cfg.AudioPolicy, ""))
	if err != nil {
		return corpus.BuildConfig{}, err
	}
	store, err := e.corpora()
	if err != nil {
		return corpus.BuildConfig{}, err
	}
	return corpus.BuildConfig{
		Voice:      voice,
		Store:      store,
		Intonation: intonation,
		Heuristic:  heuristic,
		Policy:     policy,
		PhoneTier:  pick(cmd, "phone-tier", f.phoneTier, e.cfg.PhoneTier, ""),
		Logger:     e.logger,
	}, nil
}

// inventory loads the snapshot of voice, building and saving it when it is
// missing or stale. With noCache the corpus is scanned and nothing is
// persisted; with force the snapshot is rebuilt unconditionally.
func (e *env) inventory(ctx context.Context, cmd *cobra.Command, voice string, f *inventoryFlags) (*corpus.Inventory, *corpus.BuildReport, error) {
	voice, err := corpus.CleanVoice(voice)
	if err != nil {
		return nil, nil, err
	}
	bc, err := e.buildConfig(cmd, voice, f)
	if err != nil {
		return nil, nil, err
	}
	if f.noCache {
		return corpus.Build(ctx, bc)
	}
	snaps, err := e.openSnapshots(voice)
	if err != nil {
		return nil, nil, err
	}
	defer snaps.Close()

	if !f.force {
		return corpus.LoadOrBuild(ctx, snaps, bc)
	}
	inv, report, err := corpus.Build(ctx, bc)
	if err != nil {
		return nil, nil, err
	}
	if err := corpus.Save(ctx, snaps, inv); err != nil {
		return nil, nil, fmt.Errorf("save snapshot: %w", err)
	}
	return inv, report, nil
}

// lexicon builds the pronouncing lexicon of an inventory, merged with the
// configured dictionary file.
func (e *env) lexicon(inv *corpus.Inventory, wordTier string) (*lexicon.Lexicon, error) {
	if wordTier == "" {
		wordTier = corpus.DefaultWordTier
	}
	lex, err := lexicon.FromCorpus(inv, wordTier)
	if err != nil {
		if e.cfg.Lexicon == "" {
			return nil, err
		}
		e.logger.Warn("corpus has no word tier", "tier", wordTier, "error", err)
		lex = lexicon.New()
	}
	if e.cfg.Lexicon != "" {
		n, err := lex.LoadCMUDict(e.cfg.Lexicon)
		if err != nil {
			return nil, fmt.Errorf("load lexicon %s: %w", e.cfg.Lexicon, err)
		}
		e.logger.Debug("loaded dictionary", "path", e.cfg.Lexicon, "pronunciations", n)
	}
	return lex, nil
}

// pick returns the flag value if the flag was set, else the config value,
// else def.
func pick(cmd *cobra.Command, flag, flagVal, cfgVal, def string) string {
	if cmd.Flags().Changed(flag) {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	return def
}

func logReport(logger *slog.Logger, voice string, r *corpus.BuildReport) {
	if r == nil {
		logger.Debug("inventory loaded from snapshot", "voice", voice)
		return
	}
	logger.Info("inventory built",
		"voice", voice,
		"items", r.Items,
		"instances", r.Instances,
		"skipped", len(r.Skipped),
		"elapsed", cli.FormatDuration(r.Elapsed),
	)
}
