package commands

import (
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/pkg/cli"
	"github.com/haivivi/unitsynth/pkg/corpus"
)

var (
	inspectFlags  inventoryFlags
	inspectFormat string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <voice> [phoneme]",
	Short: "Show the phonemes and instances of a voice",
	Long: `Show the phonemes of a voice with their instance counts, or every
instance of one phoneme with its recorded context and intonation.`,
	Example: `  unitsynth inspect alice
  unitsynth inspect alice AE --format json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseOutputFormat(inspectFormat)
		if err != nil {
			return err
		}
		e, err := newEnv()
		if err != nil {
			return err
		}
		inv, report, err := e.inventory(cmd.Context(), cmd, args[0], &inspectFlags)
		if err != nil {
			return err
		}
		logReport(e.logger, args[0], report)

		opts := cli.OutputOptions{Format: format, Writer: cmd.OutOrStdout()}
		if len(args) == 1 {
			return cli.Output(phonemeSummary(inv), opts)
		}
		p, err := inv.Phoneme(corpus.StripStress(args[1]))
		if err != nil {
			return err
		}
		return cli.Output(newInstanceList(p.Instances), opts)
	},
}

func init() {
	inspectFlags.register(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "table", "output format: table, yaml or json")
	rootCmd.AddCommand(inspectCmd)
}

type phonemeCount struct {
	Phoneme   string `json:"phoneme" yaml:"phoneme"`
	Instances int    `json:"instances" yaml:"instances"`
}

type phonemeCounts []phonemeCount

func phonemeSummary(inv *corpus.Inventory) phonemeCounts {
	var out phonemeCounts
	for _, name := range inv.Names() {
		p, _ := inv.Phoneme(name)
		out = append(out, phonemeCount{Phoneme: name, Instances: len(p.Instances)})
	}
	return out
}

func (phonemeCounts) Header() []string { return []string{"PHONEME", "INSTANCES"} }

func (c phonemeCounts) Rows() [][]string {
	rows := make([][]string, len(c))
	for i, p := range c {
		rows[i] = []string{label(p.Phoneme), strconv.Itoa(p.Instances)}
	}
	return rows
}

type instanceView struct {
	Word     string `json:"word" yaml:"word"`
	Interval int    `json:"interval" yaml:"interval"`
	Pre      string `json:"pre" yaml:"pre"`
	Nex      string `json:"nex" yaml:"nex"`

	// Intonation is nil for segments too short to measure, which JSON
	// cannot encode as +Inf.
	Intonation *float64 `json:"intonation" yaml:"intonation"`
}

type instanceList []instanceView

func newInstanceList(in []corpus.Instance) instanceList {
	out := make(instanceList, len(in))
	for i, x := range in {
		out[i] = instanceView{Word: x.Word, Interval: x.Interval, Pre: x.Pre, Nex: x.Nex}
		if !math.IsInf(x.Intonation, 0) && !math.IsNaN(x.Intonation) {
			v := x.Intonation
			out[i].Intonation = &v
		}
	}
	return out
}

func (instanceList) Header() []string {
	return []string{"WORD", "INTERVAL", "PRE", "NEX", "INTONATION"}
}

func (l instanceList) Rows() [][]string {
	rows := make([][]string, len(l))
	for i, in := range l {
		rows[i] = []string{
			in.Word,
			strconv.Itoa(in.Interval),
			label(in.Pre),
			label(in.Nex),
			intonation(in.Intonation),
		}
	}
	return rows
}

func intonation(v *float64) string {
	if v == nil {
		return cli.FormatIntonation(math.Inf(1))
	}
	return cli.FormatIntonation(*v)
}

// label shows the silence label.
func label(s string) string {
	if s == "" {
		return "<sil>"
	}
	return s
}
