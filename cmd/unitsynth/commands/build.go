package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/unitsynth/pkg/cli"
)

var buildFlags inventoryFlags

var buildCmd = &cobra.Command{
	Use:   "build <voice>",
	Short: "Build and persist the inventory snapshot of a voice",
	Long: `Build and persist the inventory snapshot of a voice.

Without --force an up-to-date snapshot is kept as is. A snapshot is stale
when it was built with another heuristic, audio policy or phone tier.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voice := args[0]
		e, err := newEnv()
		if err != nil {
			return err
		}
		inv, report, err := e.inventory(cmd.Context(), cmd, voice, &buildFlags)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if report == nil {
			cli.PrintSuccess(w, "%s: snapshot up to date (%d phonemes, %d instances)", voice, len(inv.Names()), inv.Len())
			return nil
		}
		for _, s := range report.Skipped {
			cli.PrintWarning(w, "skipped %s: %s", s.Item, s.Reason)
		}
		cli.PrintSuccess(w, "%s: %d items, %d instances, %d phonemes in %s -> %s",
			voice, report.Items, report.Instances, len(inv.Names()),
			cli.FormatDuration(report.Elapsed), e.snapshotDir(voice))
		return nil
	},
}

func init() {
	buildFlags.register(buildCmd)
	buildCmd.Flags().BoolVar(&buildFlags.force, "force", false, "rebuild even if the snapshot is up to date")
	rootCmd.AddCommand(buildCmd)
}
