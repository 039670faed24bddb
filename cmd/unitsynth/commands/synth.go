package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/pkg/choose"
	"github.com/haivivi/unitsynth/pkg/cli"
	"github.com/haivivi/unitsynth/pkg/engine"
	"github.com/haivivi/unitsynth/pkg/lexicon"
	"github.com/haivivi/unitsynth/pkg/storage"
	"github.com/haivivi/unitsynth/pkg/synth"
)

var synthFlags struct {
	inventoryFlags

	voice      string
	text       string
	phonemes   string
	crossfade  bool
	overlap    float64
	strategy   string
	missing    string
	sampleRate int
	wordTier   string
	output     string
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize text with a recorded voice",
	Long: `Synthesize text with a recorded voice.

The text is converted to phones with a lexicon built from the voice's word
tier (plus the dictionary file set as "lexicon" in the config). Use
--phonemes to pass phones directly, with "|" between words.

The output is a 16-bit mono WAV file, or raw L16 PCM when the output path
ends in .pcm.`,
	Example: `  unitsynth synth --voice alice --text "hello world"
  unitsynth synth --voice alice --phonemes "HH AH0 L OW1" --overlap 0 -o hello.pcm`,
	Args: cobra.NoArgs,
	RunE: runSynth,
}

func init() {
	f := synthCmd.Flags()
	f.StringVar(&synthFlags.voice, "voice", "", "voice (corpus directory name)")
	f.StringVarP(&synthFlags.text, "text", "t", "", "text to speak")
	f.StringVar(&synthFlags.phonemes, "phonemes", "", `explicit ARPABET phones, "|" between words`)
	f.BoolVar(&synthFlags.crossfade, "crossfade", true, "crossfade adjacent units")
	f.Float64Var(&synthFlags.overlap, "overlap", 1, "crossfade overlap in [0, 1]; 0 fades through silence")
	f.StringVar(&synthFlags.strategy, "strategy", "", "selection strategy: dual_similarity or dual_equality")
	f.StringVar(&synthFlags.missing, "missing", "", "on a phone with no recording: fail, skip or silence")
	f.IntVar(&synthFlags.sampleRate, "sample-rate", 0, "output sample rate (default: rate of the first unit)")
	f.StringVar(&synthFlags.wordTier, "word-tier", "", "annotation tier holding words")
	f.StringVarP(&synthFlags.output, "output", "o", "synth.wav", "output file (.wav or .pcm)")
	f.BoolVar(&synthFlags.noCache, "no-cache", false, "scan the corpus without reading or writing a snapshot")
	synthFlags.register(synthCmd)
	synthCmd.MarkFlagRequired("voice")

	rootCmd.AddCommand(synthCmd)
}

// engineConfig merges flags and config into an engine configuration. All
// fatal option errors are found here, before the corpus is touched.
func engineConfig(cmd *cobra.Command, e *env) (engine.Config, error) {
	cfg := e.cfg
	strategy, err := choose.ParseStrategy(pick(cmd, "strategy", synthFlags.strategy, cfg.Strategy, ""))
	if err != nil {
		return engine.Config{}, err
	}
	missing, err := engine.ParseMissingPolicy(pick(cmd, "missing", synthFlags.missing, cfg.Missing, ""))
	if err != nil {
		return engine.Config{}, err
	}
	opts := synth.Options{
		Crossfade: cfg.CrossfadeOr(true),
		Overlap:   cfg.OverlapOr(1),
	}
	if cmd.Flags().Changed("crossfade") {
		opts.Crossfade = synthFlags.crossfade
	}
	if cmd.Flags().Changed("overlap") {
		opts.Overlap = synthFlags.overlap
	}
	if err := opts.Validate(); err != nil {
		return engine.Config{}, err
	}
	rate := cfg.SampleRate
	if cmd.Flags().Changed("sample-rate") {
		rate = synthFlags.sampleRate
	}
	tree, err := e.tree()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Strategy:   strategy,
		Tree:       tree,
		Synth:      opts,
		Missing:    missing,
		SampleRate: rate,
		Logger:     e.logger,
	}, nil
}

func runSynth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if strings.TrimSpace(synthFlags.text) == "" && strings.TrimSpace(synthFlags.phonemes) == "" {
		return errors.New("one of --text or --phonemes is required")
	}
	e, err := newEnv()
	if err != nil {
		return err
	}
	ecfg, err := engineConfig(cmd, e)
	if err != nil {
		return err
	}

	inv, report, err := e.inventory(ctx, cmd, synthFlags.voice, &synthFlags.inventoryFlags)
	if err != nil {
		return err
	}
	logReport(e.logger, synthFlags.voice, report)

	var labels []string
	if synthFlags.phonemes != "" {
		labels = lexicon.ParsePhonemes(synthFlags.phonemes)
	} else {
		wordTier := pick(cmd, "word-tier", synthFlags.wordTier, e.cfg.WordTier, "")
		lex, err := e.lexicon(inv, wordTier)
		if err != nil {
			return err
		}
		if labels, err = lex.Phonemes(synthFlags.text); err != nil {
			return fmt.Errorf("%w (use --phonemes to spell it out)", err)
		}
	}
	if len(labels) == 0 {
		return errors.New("nothing to synthesize")
	}
	e.logger.Debug("target phones", "labels", strings.Join(labels, " "))

	eng, err := engine.New(inv, ecfg)
	if err != nil {
		return err
	}
	res, err := eng.Synthesize(ctx, labels)
	if err != nil {
		return err
	}

	out := synthFlags.output
	dir, err := storage.NewLocal(filepath.Dir(out))
	if err != nil {
		return err
	}
	if err := res.Save(ctx, dir, filepath.Base(out)); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	cli.PrintSuccess(cmd.OutOrStdout(), "wrote %s (%d units, %s at %d Hz)",
		out, res.Units, cli.FormatDuration(res.Duration()), res.SampleRate)
	return nil
}
