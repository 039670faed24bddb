package commands

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/pkg/cli"
	"github.com/haivivi/unitsynth/pkg/corpus"
	"github.com/haivivi/unitsynth/pkg/storage"
)

var voicesFormat string

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voices",
	Long:  `List the corpus directories of the voices store and whether each has an inventory snapshot.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(voicesFormat)
		if err != nil {
			return err
		}
		e, err := newEnv()
		if err != nil {
			return err
		}
		fs, err := e.corpora()
		if err != nil {
			return err
		}
		names, err := storage.Dirs(cmd.Context(), fs)
		if err != nil {
			return err
		}
		var list voiceList
		for _, name := range names {
			v := voiceInfo{Voice: name}
			if info, err := e.snapshotInfo(cmd.Context(), name); err == nil {
				v.Snapshot = true
				v.Phonemes = info.Phonemes
				v.Words = info.Words
				v.Heuristic = info.Heuristic
				v.BuiltAt = info.BuiltAt
			} else if !errors.Is(err, corpus.ErrSnapshotMiss) {
				e.logger.Warn("cannot read snapshot", "voice", name, "error", err)
			}
			list = append(list, v)
		}
		return cli.Output(list, cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()})
	},
}

func init() {
	voicesCmd.Flags().StringVar(&voicesFormat, "format", "table", "output format: table, yaml or json")
	rootCmd.AddCommand(voicesCmd)
}

// snapshotInfo reads snapshot metadata without creating a database for
// voices that were never built.
func (e *env) snapshotInfo(ctx context.Context, voice string) (*corpus.SnapshotInfo, error) {
	if _, err := os.Stat(e.snapshotDir(voice)); err != nil {
		return nil, corpus.ErrSnapshotMiss
	}
	snaps, err := e.openSnapshots(voice)
	if err != nil {
		return nil, err
	}
	defer snaps.Close()
	return corpus.Stat(ctx, snaps, voice)
}

type voiceInfo struct {
	Voice     string    `json:"voice" yaml:"voice"`
	Snapshot  bool      `json:"snapshot" yaml:"snapshot"`
	Words     int       `json:"words,omitempty" yaml:"words,omitempty"`
	Phonemes  int       `json:"phonemes,omitempty" yaml:"phonemes,omitempty"`
	Heuristic string    `json:"heuristic,omitempty" yaml:"heuristic,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitzero" yaml:"built_at,omitempty"`
}

type voiceList []voiceInfo

func (voiceList) Header() []string {
	return []string{"VOICE", "SNAPSHOT", "WORDS", "PHONEMES", "BUILT"}
}

func (l voiceList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, v := range l {
		if !v.Snapshot {
			rows[i] = []string{v.Voice, "no", "-", "-", "-"}
			continue
		}
		rows[i] = []string{
			v.Voice,
			"yes",
			strconv.Itoa(v.Words),
			strconv.Itoa(v.Phonemes),
			v.BuiltAt.Local().Format(time.DateTime),
		}
	}
	return rows
}
