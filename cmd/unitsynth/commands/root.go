package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/pkg/cli"
)

var (
	// Global flags
	configPath string
	verbose    bool
	traceOn    bool
	voicesDir  string
	cacheDir   string

	// Loaded in PersistentPreRunE.
	globalConfig *cli.Config

	shutdownTracing func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "unitsynth",
	Short: "Concatenative unit-selection speech synthesizer",
	Long: `unitsynth - speak with a recorded voice.

A voice is a directory of recordings, each an audio file (<item>.wav) paired
with a Praat annotation (<item>.TextGrid) holding a phone tier and a word
tier. unitsynth indexes every recorded phone, picks the best recording for
each target phone by its phonetic context, and joins the pieces with
crossfades.

Configuration is stored in ~/.unitsynth/config.yaml. Inventory snapshots
are cached under ~/.unitsynth/cache/snapshots/<voice>.

Examples:
  # Synthesize with the default strategy
  unitsynth synth --voice alice --text "hello world" -o hello.wav

  # Explicit phonemes, equality strategy, half overlap
  unitsynth synth --voice alice --phonemes "HH AH0 L OW1 | W ER1 L D" \
    --strategy dual_equality --overlap 0.5

  # Rebuild a snapshot after editing the corpus
  unitsynth build alice --force`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := cli.LoadConfig(configPath)
		if err != nil {
			return err
		}
		globalConfig = cfg

		if traceOn && shutdownTracing == nil {
			shutdown, err := setupTracing(os.Stderr)
			if err != nil {
				return err
			}
			shutdownTracing = shutdown
		}
		return nil
	},
}

// Execute runs the root command and flushes traces.
func Execute() error {
	err := rootCmd.Execute()
	if shutdownTracing != nil {
		err = errors.Join(err, shutdownTracing(context.Background()))
		shutdownTracing = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.unitsynth/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, including every chosen unit")
	rootCmd.PersistentFlags().BoolVar(&traceOn, "trace", false, "print OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().StringVar(&voicesDir, "voices-dir", "", "directory holding one corpus per voice")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "directory for inventory snapshots")
}

// GetConfig returns the loaded configuration.
func GetConfig() *cli.Config {
	if globalConfig == nil {
		return &cli.Config{}
	}
	return globalConfig
}
